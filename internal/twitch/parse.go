package twitch

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/tockanest/United-Chat/internal/message"
)

// Chat events arrive as tagged IRC lines of the shape
// "@tags :user!user@host PRIVMSG #channel :text". Anything else is not a
// chat event and yields nothing.
var privmsgRE = regexp.MustCompile(`@(?P<tags>[^ ]*) (?P<username>[^!]+)![^ ]* PRIVMSG #[^ ]* :(?P<message>.*)`)

// ParseChatLine splits a raw IRC line into its tag block, sending user and
// message text. ok is false for non-chat lines.
func ParseChatLine(line string) (tags, username, text string, ok bool) {
	m := privmsgRE.FindStringSubmatch(line)
	if m == nil {
		return "", "", "", false
	}
	return m[1], strings.TrimPrefix(m[2], ":"), m[3], true
}

// ParseTags parses the tag block into name/value pairs, preserving the
// original wire order. Each pair splits on the first '='.
func ParseTags(raw string) []message.Tag {
	parts := strings.Split(raw, ";")
	tags := make([]message.Tag, 0, len(parts))
	for _, part := range parts {
		name, value, _ := strings.Cut(part, "=")
		tags = append(tags, message.Tag{Name: name, Value: value})
	}
	return tags
}

func tagValue(tags []message.Tag, name string) string {
	for _, t := range tags {
		if t.Name == name {
			return t.Value
		}
	}
	return ""
}

// EmoteURL builds the CDN image URL for an emote id.
func EmoteURL(emoteID string) string {
	return fmt.Sprintf("https://static-cdn.jtvnw.net/emoticons/v2/%s/default/dark/1.0", emoteID)
}

// substituteEmotes resolves the emotes tag ("id:start-end,start-end/id2:...")
// against the raw text. The start-end offsets are UTF-16 code units into the
// raw text; the slice at the first range names the emote, and every
// occurrence of that name is replaced with an embeddable image tag.
// Malformed entries are skipped per-emote.
func substituteEmotes(raw, emoteTag string) (string, []message.Emote) {
	emotes := make([]message.Emote, 0)
	if emoteTag == "" {
		return raw, emotes
	}

	units := utf16.Encode([]rune(raw))
	rendered := raw

	for _, entry := range strings.Split(emoteTag, "/") {
		id, ranges, found := strings.Cut(entry, ":")
		if !found || id == "" {
			continue
		}
		for _, rng := range strings.Split(ranges, ",") {
			startStr, endStr, found := strings.Cut(rng, "-")
			if !found {
				continue
			}
			start, err1 := strconv.Atoi(startStr)
			end, err2 := strconv.Atoi(endStr)
			if err1 != nil || err2 != nil || start < 0 || start > end || end >= len(units) {
				continue
			}

			name := string(utf16.Decode(units[start : end+1]))
			url := EmoteURL(id)
			emotes = append(emotes, message.Emote{Name: name, URL: url})

			img := fmt.Sprintf(`<img id=%q src=%q alt=%q />`, name, url, name)
			rendered = strings.ReplaceAll(rendered, name, img)

			// All ranges of one emote carry the same name, and the
			// replacement above already covered every occurrence.
			break
		}
	}

	return rendered, emotes
}

// resolveBadges matches the badges tag ("name/version,name2/version2")
// against the channel badge catalog and returns the image URL of each match.
// Malformed or unmatched pairs are skipped.
func resolveBadges(badgeTag string, sets []BadgeSet) []string {
	urls := make([]string, 0)
	if badgeTag == "" {
		return urls
	}

	for _, pair := range strings.Split(badgeTag, ",") {
		name, version, found := strings.Cut(pair, "/")
		if !found {
			continue
		}
		for _, set := range sets {
			if set.SetID != name {
				continue
			}
			for _, v := range set.Versions {
				if v.ID == version {
					urls = append(urls, v.ImageURL4x)
				}
			}
		}
	}

	return urls
}
