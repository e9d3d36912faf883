package message

// Platform identifies the chat platform a message originated from.
type Platform string

const (
	PlatformTwitch  Platform = "twitch"
	PlatformYouTube Platform = "youtube"
)

// Emote is a resolved emote: display name plus the image URL it renders as.
type Emote struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Tag is a single raw platform tag, kept in original wire order.
type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Unified is the normalized chat message shape shared by both platforms.
// A Unified is created once by the producing connector and never mutated
// afterwards.
type Unified struct {
	ID          string   `json:"id"`
	Timestamp   int64    `json:"timestamp"` // ms since epoch
	Platform    Platform `json:"platform"`
	DisplayName string   `json:"display_name"`
	UserColor   string   `json:"user_color,omitempty"`
	UserBadges  []string `json:"user_badges"`
	Message     string   `json:"message"` // platform markup resolved to embeddable HTML
	Emotes      []Emote  `json:"emotes"`
	RawMessage  string   `json:"raw_message"`
	Tags        []Tag    `json:"tags,omitempty"`
}

// Envelope is the frame written to every broadcast consumer.
type Envelope struct {
	Platform Platform `json:"platform"`
	Data     Unified  `json:"data"`
}
