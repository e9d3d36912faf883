package twitch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

const defaultHelixURL = "https://api.twitch.tv/helix"

// BadgeVersion is one concrete badge image within a badge set.
type BadgeVersion struct {
	ID         string `json:"id"`
	ImageURL1x string `json:"image_url_1x"`
	ImageURL2x string `json:"image_url_2x"`
	ImageURL4x string `json:"image_url_4x"`
	Title      string `json:"title"`
}

// BadgeSet groups the versions of one badge (e.g. subscriber tiers).
type BadgeSet struct {
	SetID    string         `json:"set_id"`
	Versions []BadgeVersion `json:"versions"`
}

type badgesResponse struct {
	Data []BadgeSet `json:"data"`
}

// BadgeClient fetches the chat badge catalog of a broadcaster from the Helix
// API. The catalog is fetched once and cached for the client's lifetime.
type BadgeClient struct {
	httpClient  *http.Client
	baseURL     string
	clientID    string
	accessToken string

	mu     sync.Mutex
	cached map[string][]BadgeSet // broadcaster id -> catalog
}

// NewBadgeClient creates a badge catalog client authenticated with the
// supplied opaque bearer credential.
func NewBadgeClient(clientID, accessToken string) *BadgeClient {
	return &BadgeClient{
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     defaultHelixURL,
		clientID:    clientID,
		accessToken: accessToken,
		cached:      make(map[string][]BadgeSet),
	}
}

// ChannelBadges returns the badge catalog for a broadcaster.
func (c *BadgeClient) ChannelBadges(ctx context.Context, broadcasterID string) ([]BadgeSet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if sets, ok := c.cached[broadcasterID]; ok {
		return sets, nil
	}

	url := fmt.Sprintf("%s/chat/badges?broadcaster_id=%s", c.baseURL, broadcasterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create badge request: %w", err)
	}
	req.Header.Set("Client-ID", c.clientID)
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chat badges: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chat badges request returned status %d", resp.StatusCode)
	}

	var parsed badgesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode chat badges: %w", err)
	}

	c.cached[broadcasterID] = parsed.Data
	return parsed.Data, nil
}
