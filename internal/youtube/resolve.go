package youtube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
)

const watchUserAgent = "Mozilla/5.0 (Windows NT 10.0; rv:78.0) Gecko/20100101 Firefox/78.0"

// StreamKind classifies the target content at resolve time.
type StreamKind string

const (
	KindLive      StreamKind = "live"
	KindScheduled StreamKind = "scheduled"
	KindReplay    StreamKind = "replay"
)

// VideoInfo is the session metadata resolved once from the watch page. The
// continuation token is replaced after every successful poll.
type VideoInfo struct {
	VideoID        string     `json:"video_id"`
	Title          string     `json:"video_name"`
	APIKey         string     `json:"api_key"`
	ClientVersion  string     `json:"client_version"`
	Continuation   string     `json:"continuation"`
	ScheduledStart string     `json:"scheduled_start_time,omitempty"`
	Kind           StreamKind `json:"stream_type"`
}

// ResolveError reports a missing required field or ineligible content,
// carrying the best-known video id ("Unknown" before the id is extracted).
type ResolveError struct {
	VideoID string
	Reason  string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve video %s: %s", e.VideoID, e.Reason)
}

// Field extraction is structured scanning of the inline script state embedded
// in the watch page, not a full HTML or JSON parse.
var (
	replayRE         = regexp.MustCompile(`"isReplay"\s*:\s*(true)`)
	apiKeyRE         = regexp.MustCompile(`"INNERTUBE_API_KEY"\s*:\s*"([^"]+)"`)
	continuationRE   = regexp.MustCompile(`"continuation"\s*:\s*"([^"]+)"`)
	scheduledRE      = regexp.MustCompile(`"scheduledStartTime"\s*:\s*"([^"]+)"`)
	clientVersionRE  = regexp.MustCompile(`"clientVersion"\s*:\s*"([\d.]+)"`)
	canonicalLinkRE  = regexp.MustCompile(`<link\s+rel="canonical"\s+href="https://www\.youtube\.com/watch\?v=([^"]+)"`)
	titleRE          = regexp.MustCompile(`<title>([^<]+)</title>`)
)

func firstMatch(re *regexp.Regexp, html string) string {
	if m := re.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

// extractVideoInfo scans the watch page for the fields the polling session
// needs. Every missing required field and the replay case surface as a
// typed ResolveError.
func extractVideoInfo(html string) (*VideoInfo, error) {
	info := &VideoInfo{
		VideoID: firstMatch(canonicalLinkRE, html),
		Title:   firstMatch(titleRE, html),
	}
	knownID := info.VideoID
	if knownID == "" {
		knownID = "Unknown"
	}

	isReplay := replayRE.MatchString(html)

	info.APIKey = firstMatch(apiKeyRE, html)
	if info.APIKey == "" {
		return nil, &ResolveError{VideoID: knownID, Reason: "cannot find the API key"}
	}

	info.Continuation = firstMatch(continuationRE, html)
	if info.Continuation != "" {
		if isReplay {
			info.Kind = KindReplay
			return nil, &ResolveError{VideoID: knownID, Reason: "replay streams have no live chat"}
		}
		info.Kind = KindLive
	} else {
		info.ScheduledStart = firstMatch(scheduledRE, html)
		if info.ScheduledStart == "" {
			return nil, &ResolveError{VideoID: knownID, Reason: "cannot find the continuation or scheduled start time"}
		}
		info.Kind = KindScheduled
	}

	info.ClientVersion = firstMatch(clientVersionRE, html)
	if info.ClientVersion == "" {
		return nil, &ResolveError{VideoID: knownID, Reason: "cannot find the client version"}
	}

	if info.VideoID == "" {
		return nil, &ResolveError{VideoID: "Unknown", Reason: "cannot find the video id"}
	}

	return info, nil
}

// ResolveVideo fetches the watch page for a video id and extracts the
// polling session metadata.
func ResolveVideo(ctx context.Context, client *http.Client, watchBaseURL, id string) (*VideoInfo, error) {
	url := fmt.Sprintf("%s/watch?v=%s", watchBaseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ResolveError{VideoID: id, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", watchUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &ResolveError{VideoID: id, Reason: fmt.Sprintf("fetch watch page: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ResolveError{VideoID: id, Reason: fmt.Sprintf("watch page returned status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ResolveError{VideoID: id, Reason: fmt.Sprintf("read watch page: %v", err)}
	}

	return extractVideoInfo(string(body))
}
