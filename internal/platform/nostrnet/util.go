package nostrnet

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mmcloughlin/geohash"
	"github.com/nbd-wtf/go-nostr"
	"github.com/rivo/uniseg"
)

func isGeohash(chat string) bool {
	return geohash.Validate(chat) == nil
}

// normalizeChat accepts a geohash as is and folds anything else into a
// lower-case dash separated chat name.
func normalizeChat(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	if isGeohash(name) {
		return name, nil
	}
	normalized, err := normalizeAndValidateChatName(name)
	if err != nil {
		return "", err
	}
	if normalized == "" {
		return "", fmt.Errorf("empty chat name")
	}
	if utf8.RuneCountInString(normalized) > maxChatNameLen {
		return "", fmt.Errorf("chat name '%s' is too long (max %d chars)", normalized, maxChatNameLen)
	}
	return normalized, nil
}

func normalizeAndValidateChatName(name string) (string, error) {
	normalized := strings.ToLower(name)
	var builder strings.Builder
	builder.Grow(len(normalized))
	var lastWasDash bool
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			builder.WriteRune(r)
			lastWasDash = false
		} else if unicode.IsSpace(r) || r == '-' {
			if !lastWasDash {
				builder.WriteRune('-')
				lastWasDash = true
			}
		} else {
			return "", fmt.Errorf("chat name contains invalid character: '%c'", r)
		}
	}
	return strings.Trim(builder.String(), "-"), nil
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	m := make(map[string]struct{}, len(a))
	for _, s := range a {
		m[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := m[s]; !ok {
			return false
		}
	}
	return true
}

// currentChats lists the chats a subscription's filters cover.
func currentChats(sub *nostr.Subscription) []string {
	if sub == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, f := range sub.Filters {
		for _, key := range []string{"g", "d"} {
			for _, ch := range f.Tags[key] {
				if _, exists := seen[ch]; !exists {
					seen[ch] = struct{}{}
					out = append(out, ch)
				}
			}
		}
	}
	return out
}

func truncateString(s string, maxClusters int) string {
	g := uniseg.NewGraphemes(s)
	var b strings.Builder
	count := 0
	for g.Next() {
		if count >= maxClusters {
			b.WriteString("...")
			break
		}
		b.WriteString(g.Str())
		count++
	}
	return b.String()
}

func sanitizeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 32 && r != '\n' && r != '\t' {
			continue
		}
		if r == 127 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pubkeyColor derives a stable, readable chum color from a public key.
func pubkeyColor(pubkey string) string {
	sum := sha256.Sum256([]byte(pubkey))
	hue := float64(binary.BigEndian.Uint16(sum[:2])) / 65536 * 360
	r, g, b := colorful.Hsv(hue, 0.75, 0.75).RGB255()
	return fmt.Sprintf("rgb(%d,%d,%d)", r, g, b)
}

func npubToTokiPona(pubkey string) string {
	var sum [3]byte
	for i := 0; i < len(pubkey); i++ {
		sum[i%3] ^= pubkey[i]
	}
	return fmt.Sprintf("%s-%s-%s",
		tokiPonaNouns[int(sum[0])%len(tokiPonaNouns)],
		tokiPonaNouns[int(sum[1])%len(tokiPonaNouns)],
		tokiPonaNouns[int(sum[2])%len(tokiPonaNouns)],
	)
}

var tokiPonaNouns = [...]string{
	"ijo", "ilo", "insa", "jan", "jelo", "jo", "kala", "kalama", "kasi", "ken",
	"kili", "kiwen", "ko", "kon", "kulupu", "lape", "laso", "lawa", "len", "lili",
	"linja", "lipu", "loje", "luka", "lukin", "lupa", "ma", "mama", "mani", "meli",
	"mije", "moku", "moli", "monsi", "mun", "musi", "mute", "nanpa", "nasin", "nena",
	"nimi", "noka", "oko", "olin", "open", "pakala", "pali", "palisa", "pan", "pilin",
	"pipi", "poki", "pona", "selo", "sewi", "sijelo", "sike", "sitelen", "sona", "soweli",
	"suli", "suno", "supa", "suwi", "telo", "tenpo", "toki", "tomo", "unpa", "uta",
	"utala", "waso", "wawa", "weka", "wile",
}
