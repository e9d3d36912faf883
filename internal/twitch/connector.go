package twitch

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tockanest/United-Chat/internal/message"
)

const (
	// Twitch serves its IRC interface over a single fixed websocket
	// endpoint.
	defaultChatEndpoint = "wss://irc-ws.chat.twitch.tv:443"

	anonymousNick = "NICK justinfan1234"
	pongReply     = "PONG :tmi.twitch.tv"
	tagCapRequest = "CAP REQ :twitch.tv/tags"

	// stopPollInterval bounds how long the relay loop waits before
	// re-checking the stop token when no traffic arrives.
	stopPollInterval = 100 * time.Millisecond
)

// StopToken is the read-only cancellation signal the connector polls.
type StopToken interface {
	Stopped() bool
}

// Identity is the externally resolved session identity: either an
// authenticated login with its bearer credential, or a plain fallback
// channel name when authentication was skipped.
type Identity struct {
	Login         string // authenticated login; empty when auth was skipped
	Channel       string // fallback channel name
	ClientID      string
	AccessToken   string
	BroadcasterID string
}

func (id Identity) channel() string {
	if id.Login != "" {
		return id.Login
	}
	return id.Channel
}

func (id Identity) anonymous() bool {
	return id.Login == "" || id.AccessToken == ""
}

// Connector maintains the long-lived chat socket connection: handshake,
// keepalive, and relaying chat events into unified messages.
type Connector struct {
	identity Identity
	badges   *BadgeClient // nil for anonymous sessions
	endpoint string
}

// New creates a Twitch chat connector for the given identity. Authenticated
// sessions resolve author badges against the channel badge catalog;
// anonymous sessions skip badge resolution.
func New(identity Identity) *Connector {
	c := &Connector{
		identity: identity,
		endpoint: defaultChatEndpoint,
	}
	if !identity.anonymous() {
		c.badges = NewBadgeClient(identity.ClientID, identity.AccessToken)
	}
	return c
}

// Start connects to the chat socket and relays chat events to out until the
// token is set or the connection drops. A failed handshake is fatal and
// returned; a mid-stream disconnect ends the connector without touching the
// rest of the session.
func (c *Connector) Start(ctx context.Context, tok StopToken, out chan<- message.Unified) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial twitch chat socket: %w", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte(anonymousNick)); err != nil {
		return fmt.Errorf("send nick: %w", err)
	}

	done := make(chan struct{})
	defer close(done)

	lines := make(chan string, 64)
	readErr := make(chan error, 1)
	go func() {
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			for _, line := range strings.Split(string(payload), "\r\n") {
				if line == "" {
					continue
				}
				select {
				case lines <- line:
				case <-done:
					return
				}
			}
		}
	}()

	ticker := time.NewTicker(stopPollInterval)
	defer ticker.Stop()

	for {
		select {
		case line := <-lines:
			if err := c.handleLine(ctx, conn, line, out); err != nil {
				log.Printf("Twitch IRC write error: %v", err)
				return nil
			}

		case err := <-readErr:
			log.Printf("Disconnected from Twitch IRC: %v", err)
			c.quit(conn)
			return nil

		case <-ticker.C:
			if tok.Stopped() {
				log.Println("Stopping Twitch IRC connection...")
				c.quit(conn)
				return nil
			}
		}
	}
}

func (c *Connector) handleLine(ctx context.Context, conn *websocket.Conn, line string, out chan<- message.Unified) error {
	switch {
	case strings.HasPrefix(line, "PING"):
		return conn.WriteMessage(websocket.TextMessage, []byte(pongReply))

	case strings.Contains(line, "Welcome, GLHF!"):
		if err := conn.WriteMessage(websocket.TextMessage, []byte(tagCapRequest)); err != nil {
			return err
		}
		join := fmt.Sprintf("JOIN #%s", c.identity.channel())
		log.Printf("Joining channel: %s", c.identity.channel())
		return conn.WriteMessage(websocket.TextMessage, []byte(join))

	case strings.Contains(line, "PRIVMSG"):
		if msg := c.normalize(ctx, line); msg != nil {
			out <- *msg
		}
	}
	return nil
}

// quit sends a best-effort polite QUIT before the connection closes.
func (c *Connector) quit(conn *websocket.Conn) {
	conn.SetWriteDeadline(time.Now().Add(time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, []byte("QUIT")); err != nil {
		log.Printf("Error sending QUIT: %v", err)
	}
}

// normalize turns one raw chat line into a unified message. Lines that do
// not match the chat-event grammar yield nil.
func (c *Connector) normalize(ctx context.Context, line string) *message.Unified {
	rawTags, username, text, ok := ParseChatLine(line)
	if !ok {
		return nil
	}

	tags := ParseTags(rawTags)
	rendered, emotes := substituteEmotes(text, tagValue(tags, "emotes"))

	displayName := tagValue(tags, "display-name")
	if displayName == "" {
		displayName = username
	}

	badgeURLs := make([]string, 0)
	if c.badges != nil {
		if badgeTag := tagValue(tags, "badges"); badgeTag != "" {
			sets, err := c.badges.ChannelBadges(ctx, c.identity.BroadcasterID)
			if err != nil {
				log.Printf("Error fetching badge catalog: %v", err)
			} else {
				badgeURLs = resolveBadges(badgeTag, sets)
			}
		}
	}

	return &message.Unified{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UnixMilli(),
		Platform:    message.PlatformTwitch,
		DisplayName: displayName,
		UserColor:   tagValue(tags, "color"),
		UserBadges:  badgeURLs,
		Message:     rendered,
		Emotes:      emotes,
		RawMessage:  text,
		Tags:        tags,
	}
}
