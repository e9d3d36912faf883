package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tockanest/United-Chat/internal/message"
)

// Hub is the broadcast fan-out the coordinator manages for a session.
type Hub interface {
	Broadcast(env message.Envelope)
	Close()
}

// RunFunc is a platform connector: it produces unified messages on out until
// the token is set or the connector fails.
type RunFunc func(ctx context.Context, tok Token, out chan<- message.Unified) error

// Deps wires the coordinator to its collaborators. NewHub must bind the
// broadcast listener and return an error when the address cannot be bound.
type Deps struct {
	NewHub  func() (Hub, error)
	Twitch  RunFunc
	YouTube func(videoID string, interval time.Duration) RunFunc

	// Archive, when non-nil, receives a best-effort copy of every
	// broadcast message.
	Archive chan<- message.Unified
}

// StartOptions carries the per-session start request.
type StartOptions struct {
	// YouTubeVideoID enables the polling connector when non-empty.
	YouTubeVideoID string
	// PollInterval is the delay between live chat fetches.
	PollInterval time.Duration
}

// Coordinator owns the process-wide aggregation session: at most one session
// runs at a time, and a stopped session can be started again once the stop
// flag has been reset.
type Coordinator struct {
	deps Deps

	mu      sync.Mutex
	started bool
	stop    stopFlag

	// pollEvery is how often the shutdown monitor checks the stop flag;
	// grace is how long closed consumers get to drain before the flag
	// resets. Shortened by tests.
	pollEvery time.Duration
	grace     time.Duration
}

// New creates a coordinator. No session is running until Start is called.
func New(deps Deps) *Coordinator {
	return &Coordinator{
		deps:      deps,
		pollEvery: 100 * time.Millisecond,
		grace:     2 * time.Second,
	}
}

// Token returns the read-only cancellation view handed to adapters.
func (c *Coordinator) Token() Token {
	return Token{flag: &c.stop}
}

// Started reports whether a session is currently marked as running.
func (c *Coordinator) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Start runs one aggregation session and blocks until both connectors have
// ended, either through Stop or through an unrecoverable connector failure.
// Calling Start while a session is already running is a no-op.
func (c *Coordinator) Start(ctx context.Context, opts StartOptions) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true
	c.mu.Unlock()

	hub, err := c.deps.NewHub()
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return fmt.Errorf("start broadcast hub: %w", err)
	}

	out := make(chan message.Unified, 128)
	tok := c.Token()

	// Fan-in pump: everything the connectors produce goes to the hub, and
	// a copy to the archive when one is attached.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for msg := range out {
			hub.Broadcast(message.Envelope{Platform: msg.Platform, Data: msg})
			if c.deps.Archive != nil {
				select {
				case c.deps.Archive <- msg:
				default:
					log.Printf("Archive queue full, dropping message %s", msg.ID)
				}
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.deps.Twitch(ctx, tok, out); err != nil {
			log.Printf("Twitch connector error: %v", err)
		}
	}()

	if opts.YouTubeVideoID != "" {
		log.Println("Starting YouTube live chat client")
		run := c.deps.YouTube(opts.YouTubeVideoID, opts.PollInterval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx, tok, out); err != nil {
				log.Printf("YouTube connector error: %v", err)
			}
		}()
	}

	// Shutdown monitor: once the stop flag is observed, sever all
	// consumers, give in-flight sends a grace period to drain, then reset
	// the flag so a later Start can run.
	go func() {
		for !c.stop.v.Load() {
			time.Sleep(c.pollEvery)
		}
		hub.Close()
		time.Sleep(c.grace)
		log.Println("Resetting stop flag")
		c.stop.v.Store(false)
	}()

	wg.Wait()
	close(out)
	<-pumpDone
	return nil
}

// Stop signals the running session to shut down and returns immediately
// without waiting for the connectors to finish. Stop before Start is a no-op.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	c.mu.Unlock()

	c.stop.v.Store(true)
}
