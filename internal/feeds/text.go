package feeds

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/net/html"
)

// HashID creates a short stable fingerprint of the joined parts.
func HashID(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(h[:8]) // 16 character hex string
}

// Truncate shortens s to maxLen runes, ending in "..." when cut.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// Cut shortens s to at most maxLen runes without a marker.
func Cut(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}

// DecodeEntities unescapes HTML entities up to passes times, which unwraps
// doubly-encoded text such as "&amp;#039;". Stops early once stable.
func DecodeEntities(s string, passes int) string {
	cleaned := strings.TrimSpace(s)
	if passes < 1 {
		passes = 1
	}
	for i := 0; i < passes; i++ {
		decoded := html.UnescapeString(cleaned)
		if decoded == cleaned {
			break
		}
		cleaned = decoded
	}
	return cleaned
}

// StripMarkup drops tags from an HTML fragment and returns its text with
// runs of whitespace collapsed. Entities are left encoded.
func StripMarkup(fragment string) string {
	if !strings.ContainsAny(fragment, "<>") {
		return collapseSpace(fragment)
	}
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or unterminated markup; either way keep what we have.
			return collapseSpace(b.String())
		case html.TextToken:
			b.Write(z.Raw())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			b.WriteByte(' ')
		}
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
