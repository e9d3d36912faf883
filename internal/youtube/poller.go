package youtube

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/tockanest/United-Chat/internal/message"
)

const (
	defaultWatchBaseURL = "https://www.youtube.com"

	// maxBatchMessages bounds both the number of items taken from one
	// poll batch and the size of the dedup window.
	maxBatchMessages = 20
)

// StopToken is the read-only cancellation signal the poller checks once per
// interval tick.
type StopToken interface {
	Stopped() bool
}

// Poller resolves a live stream's session metadata once and then fetches
// incremental chat batches on a fixed interval, de-duplicating against a
// bounded window of recent message ids.
type Poller struct {
	videoID  string
	interval time.Duration

	client       *http.Client
	watchBaseURL string
	chatBaseURL  string
}

// New creates a poller for a video id. interval is the delay between
// fetches.
func New(videoID string, interval time.Duration) *Poller {
	return &Poller{
		videoID:      videoID,
		interval:     interval,
		client:       &http.Client{Timeout: 15 * time.Second},
		watchBaseURL: defaultWatchBaseURL,
		chatBaseURL:  defaultWatchBaseURL,
	}
}

// Run resolves the target video and polls its live chat until the token is
// set. A resolve failure is returned as a typed error and ends only this
// connector; per-cycle fetch failures are logged and the loop continues.
func (p *Poller) Run(ctx context.Context, tok StopToken, out chan<- message.Unified) error {
	info, err := ResolveVideo(ctx, p.client, p.watchBaseURL, p.videoID)
	if err != nil {
		return err
	}
	log.Printf("Resolved YouTube stream %s (%s)", info.VideoID, info.Kind)

	window := NewRecentWindow(maxBatchMessages)

	for {
		time.Sleep(p.interval)
		if tok.Stopped() {
			return nil
		}

		resp, err := fetchLiveChat(ctx, p.client, p.chatBaseURL, info)
		if err != nil {
			log.Printf("Error polling YouTube live chat: %v", err)
			continue
		}

		items, next, err := extractBatch(resp)
		if err != nil {
			log.Printf("Error polling YouTube live chat for %s: %v", info.VideoID, err)
			continue
		}
		info.Continuation = next

		// Only the most recent items of an oversized batch are
		// considered; anything older has already been seen or missed.
		if len(items) > maxBatchMessages {
			items = items[len(items)-maxBatchMessages:]
		}

		for _, item := range items {
			msg := normalizeItem(item)
			if window.Observe(msg.ID) {
				out <- msg
			}
		}
	}
}
