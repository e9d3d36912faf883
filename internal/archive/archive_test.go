package archive

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tockanest/United-Chat/internal/message"
)

func TestArchive_WritesJSONLPerPlatform(t *testing.T) {
	dir := t.TempDir()
	a := New(dir, 1, 60, 100)

	in := make(chan message.Unified, 8)
	rotated := make(chan string, 8)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Start(ctx, in, rotated)
	}()

	in <- message.Unified{ID: "t1", Platform: message.PlatformTwitch, Message: "hello"}
	in <- message.Unified{ID: "y1", Platform: message.PlatformYouTube, Message: "world"}

	// Wait for both messages to hit disk before shutting down.
	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, _ := os.ReadDir(dir)
		if len(entries) == 2 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected one file per platform, got %d", len(entries))
	}

	for _, entry := range entries {
		f, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			t.Fatalf("open %s: %v", entry.Name(), err)
		}
		scanner := bufio.NewScanner(f)
		lines := 0
		for scanner.Scan() {
			var msg message.Unified
			if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
				t.Errorf("line in %s is not valid JSON: %v", entry.Name(), err)
			}
			lines++
		}
		f.Close()
		if lines != 1 {
			t.Errorf("expected 1 line in %s, got %d", entry.Name(), lines)
		}
		if !strings.HasSuffix(entry.Name(), ".jsonl") {
			t.Errorf("unexpected file name: %s", entry.Name())
		}
	}

	// Shutdown queues the closed files for shipping.
	if len(rotated) != 2 {
		t.Errorf("expected 2 rotated paths, got %d", len(rotated))
	}
}
