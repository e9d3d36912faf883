package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tockanest/United-Chat/internal/message"
)

// stopAfterToken reports stopped once it has been checked n times.
type stopAfterToken struct {
	n     int
	calls int
}

func (t *stopAfterToken) Stopped() bool {
	t.calls++
	return t.calls > t.n
}

func batchResponse(next string, ids ...string) string {
	items := make([]string, 0, len(ids))
	for _, id := range ids {
		items = append(items, chatItemJSON(id, "Author", "msg "+id))
	}
	return `{"continuationContents":{"liveChatContinuation":{
		"continuations":[{"timedContinuationData":{"continuation":"` + next + `"}}],
		"actions":[` + strings.Join(items, ",") + `]
	}}}`
}

func newPollerFixture(t *testing.T, batches []string) (*Poller, *[]string) {
	t.Helper()

	continuations := &[]string{}
	calls := 0

	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, liveWatchPage)
	})
	mux.HandleFunc("/youtubei/v1/live_chat/get_live_chat", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Continuation string `json:"continuation"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode poll body: %v", err)
		}
		*continuations = append(*continuations, body.Continuation)

		if calls >= len(batches) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, batches[calls])
		calls++
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p := New("abc123", time.Millisecond)
	p.watchBaseURL = srv.URL
	p.chatBaseURL = srv.URL
	return p, continuations
}

func TestPoller_TruncatesAndDeduplicates(t *testing.T) {
	first := make([]string, 25)
	for i := range first {
		first[i] = fmt.Sprintf("id-%d", i)
	}
	// Second batch overlaps the tail of the first.
	second := []string{"id-20", "id-21", "id-22", "id-23", "id-24", "id-25", "id-26"}

	p, continuations := newPollerFixture(t, []string{
		batchResponse("tok-2", first...),
		batchResponse("tok-3", second...),
	})

	out := make(chan message.Unified, 64)
	tok := &stopAfterToken{n: 2}
	if err := p.Run(context.Background(), tok, out); err != nil {
		t.Fatalf("Run: %v", err)
	}
	close(out)

	var got []string
	seen := make(map[string]int)
	for msg := range out {
		got = append(got, msg.ID)
		seen[msg.ID]++
	}

	// A 25-item batch is truncated to the most recent 20 before dedup, so
	// id-0..id-4 never surface.
	if len(got) != 22 {
		t.Fatalf("expected 20 + 2 new messages, got %d: %v", len(got), got)
	}
	for i := 0; i < 5; i++ {
		if _, ok := seen[fmt.Sprintf("id-%d", i)]; ok {
			t.Errorf("id-%d should have been truncated away", i)
		}
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("id %s broadcast %d times, want exactly once", id, count)
		}
	}

	// The continuation token advances with every successful poll.
	want := []string{"live-continuation-token", "tok-2"}
	if len(*continuations) != 2 || (*continuations)[0] != want[0] || (*continuations)[1] != want[1] {
		t.Errorf("unexpected continuation progression: %v", *continuations)
	}
}

func TestPoller_PerCycleFailureContinues(t *testing.T) {
	p, _ := newPollerFixture(t, []string{
		batchResponse("tok-2", "id-1"),
		// Fixture serves HTTP 500 once the batches run out; the loop
		// must survive that and keep ticking until stopped.
	})

	out := make(chan message.Unified, 16)
	tok := &stopAfterToken{n: 3}
	if err := p.Run(context.Background(), tok, out); err != nil {
		t.Fatalf("per-cycle failures must not end the poller: %v", err)
	}
	close(out)

	count := 0
	for range out {
		count++
	}
	if count != 1 {
		t.Errorf("expected exactly the one successful message, got %d", count)
	}
}

func TestPoller_ResolveFailureIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := New("missing", time.Millisecond)
	p.watchBaseURL = srv.URL
	p.chatBaseURL = srv.URL

	err := p.Run(context.Background(), &stopAfterToken{n: 0}, make(chan message.Unified, 1))

	var resolveErr *ResolveError
	if !errors.As(err, &resolveErr) {
		t.Fatalf("expected a ResolveError, got %v", err)
	}
	if resolveErr.VideoID != "missing" {
		t.Errorf("error should carry the requested id, got %q", resolveErr.VideoID)
	}
}
