package youtube

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/tockanest/United-Chat/internal/message"
)

// The live chat endpoint response is decoded into a typed optional-field
// schema so that missing substructures surface as per-cycle errors instead
// of dynamic traversal panics.

type liveChatResponse struct {
	ContinuationContents *struct {
		LiveChatContinuation struct {
			Continuations []continuationEntry `json:"continuations"`
			Actions       []chatAction        `json:"actions"`
		} `json:"liveChatContinuation"`
	} `json:"continuationContents"`
}

// A continuation arrives in one of two shapes; the time-boxed one is
// preferred when both are present.
type continuationEntry struct {
	TimedContinuationData        *continuationData `json:"timedContinuationData"`
	InvalidationContinuationData *continuationData `json:"invalidationContinuationData"`
}

type continuationData struct {
	Continuation string `json:"continuation"`
}

type chatAction struct {
	AddChatItemAction *struct {
		Item struct {
			LiveChatTextMessageRenderer *textMessageRenderer `json:"liveChatTextMessageRenderer"`
		} `json:"item"`
	} `json:"addChatItemAction"`
}

type textMessageRenderer struct {
	ID                      string        `json:"id"`
	TimestampUsec           string        `json:"timestampUsec"`
	AuthorName              *simpleText   `json:"authorName"`
	AuthorExternalChannelID string        `json:"authorExternalChannelId"`
	AuthorBadges            []authorBadge `json:"authorBadges"`
	Message                 *struct {
		Runs []messageRun `json:"runs"`
	} `json:"message"`
}

type simpleText struct {
	SimpleText string `json:"simpleText"`
}

type authorBadge struct {
	LiveChatAuthorBadgeRenderer *struct {
		CustomThumbnail *struct {
			Thumbnails []thumbnail `json:"thumbnails"`
		} `json:"customThumbnail"`
	} `json:"liveChatAuthorBadgeRenderer"`
}

type thumbnail struct {
	URL string `json:"url"`
}

// messageRun is one segment of a run-based message body: either plain text
// or an inline emoji.
type messageRun struct {
	Text  string `json:"text"`
	Emoji *struct {
		Image struct {
			Thumbnails    []thumbnail `json:"thumbnails"`
			Accessibility *struct {
				AccessibilityData struct {
					Label string `json:"label"`
				} `json:"accessibilityData"`
			} `json:"accessibility"`
		} `json:"image"`
	} `json:"emoji"`
}

// fetchLiveChat issues one incremental batch fetch using the current
// continuation token.
func fetchLiveChat(ctx context.Context, client *http.Client, chatBaseURL string, info *VideoInfo) (*liveChatResponse, error) {
	url := fmt.Sprintf("%s/youtubei/v1/live_chat/get_live_chat?key=%s", chatBaseURL, info.APIKey)

	body, err := json.Marshal(map[string]any{
		"context": map[string]any{
			"client": map[string]any{
				"clientName":    "WEB",
				"clientVersion": info.ClientVersion,
			},
		},
		"continuation": info.Continuation,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal live chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create live chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", watchUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch live chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("live chat request returned status %d", resp.StatusCode)
	}

	var parsed liveChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode live chat response: %w", err)
	}
	return &parsed, nil
}

// extractBatch pulls the chat item renderers and the next continuation token
// out of a live chat response. A batch with zero items is valid ("no chat to
// deliver"); a response without any continuation is a hard error for the
// cycle.
func extractBatch(resp *liveChatResponse) ([]*textMessageRenderer, string, error) {
	if resp.ContinuationContents == nil {
		return nil, "", errors.New("response has no continuation contents")
	}
	cont := resp.ContinuationContents.LiveChatContinuation

	if len(cont.Continuations) == 0 {
		return nil, "", errors.New("response has no continuations")
	}
	var next string
	switch entry := cont.Continuations[0]; {
	case entry.TimedContinuationData != nil:
		next = entry.TimedContinuationData.Continuation
	case entry.InvalidationContinuationData != nil:
		next = entry.InvalidationContinuationData.Continuation
	default:
		return nil, "", errors.New("continuation has no known token shape")
	}

	var items []*textMessageRenderer
	for _, action := range cont.Actions {
		if action.AddChatItemAction == nil {
			continue
		}
		if r := action.AddChatItemAction.Item.LiveChatTextMessageRenderer; r != nil {
			items = append(items, r)
		}
	}

	return items, next, nil
}

// normalizeItem renders one chat item into a unified message. Inline emoji
// runs become embeddable image tags; consecutive runs are concatenated with
// no separator.
func normalizeItem(r *textMessageRenderer) message.Unified {
	authorName := "Unknown Author"
	if r.AuthorName != nil && r.AuthorName.SimpleText != "" {
		authorName = r.AuthorName.SimpleText
	}

	badges := make([]string, 0)
	for _, b := range r.AuthorBadges {
		renderer := b.LiveChatAuthorBadgeRenderer
		if renderer == nil || renderer.CustomThumbnail == nil || len(renderer.CustomThumbnail.Thumbnails) == 0 {
			continue
		}
		badges = append(badges, renderer.CustomThumbnail.Thumbnails[0].URL)
	}

	var rendered, raw string
	emotes := make([]message.Emote, 0)
	if r.Message != nil {
		for _, run := range r.Message.Runs {
			switch {
			case run.Emoji != nil:
				url := "Unknown Emoji URL"
				if len(run.Emoji.Image.Thumbnails) > 0 {
					url = run.Emoji.Image.Thumbnails[0].URL
				}
				label := "Unknown Emoji"
				if run.Emoji.Image.Accessibility != nil {
					label = run.Emoji.Image.Accessibility.AccessibilityData.Label
				}
				emotes = append(emotes, message.Emote{Name: label, URL: url})
				rendered += fmt.Sprintf(`<img id=%q class="w-6 h-6" src=%q alt=%q />`, label, url, label)
				raw += label
			case run.Text != "":
				rendered += run.Text
				raw += run.Text
			}
		}
	}

	ts := time.Now().UnixMilli()
	if usec, err := strconv.ParseInt(r.TimestampUsec, 10, 64); err == nil {
		ts = usec / 1000
	}

	return message.Unified{
		ID:          r.ID,
		Timestamp:   ts,
		Platform:    message.PlatformYouTube,
		DisplayName: authorName,
		UserBadges:  badges,
		Message:     rendered,
		Emotes:      emotes,
		RawMessage:  raw,
		Tags:        []message.Tag{},
	}
}
