package twitch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newCatalogServer(t *testing.T, hits *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		if got := r.URL.Query().Get("broadcaster_id"); got != "123" {
			t.Errorf("unexpected broadcaster_id: %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Errorf("unexpected authorization header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"set_id":"subscriber","versions":[{"id":"12","image_url_4x":"https://example.com/sub.png"}]}]}`))
	}))
}

func TestBadgeClient_ChannelBadges(t *testing.T) {
	hits := 0
	srv := newCatalogServer(t, &hits)
	defer srv.Close()

	c := NewBadgeClient("client-id", "token")
	c.baseURL = srv.URL

	sets, err := c.ChannelBadges(context.Background(), "123")
	if err != nil {
		t.Fatalf("ChannelBadges: %v", err)
	}
	if len(sets) != 1 || sets[0].SetID != "subscriber" {
		t.Fatalf("unexpected catalog: %+v", sets)
	}

	// Second call is served from the cache.
	if _, err := c.ChannelBadges(context.Background(), "123"); err != nil {
		t.Fatalf("cached ChannelBadges: %v", err)
	}
	if hits != 1 {
		t.Errorf("expected 1 catalog fetch, got %d", hits)
	}
}

func TestBadgeClient_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewBadgeClient("client-id", "token")
	c.baseURL = srv.URL

	if _, err := c.ChannelBadges(context.Background(), "123"); err == nil {
		t.Fatalf("expected error for non-OK status")
	}
}
