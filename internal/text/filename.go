package text

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxFilenamePrefix = 50
	fallbackPrefix    = "synthesized_audio"
	filenameExt       = ".wav"
)

// foldDiacritics strips combining marks so accented characters collapse to
// their ASCII base (e.g. "chào" -> "chao").
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SafeFilename derives an output filename from the input text: a UTC
// timestamp with microsecond resolution followed by a sanitized text prefix.
// The timestamp component makes names collision-free even for identical text.
func SafeFilename(input string) string {
	prefix := strings.ReplaceAll(input, "\n", " ")
	prefix = strings.ReplaceAll(prefix, "\r", " ")
	prefix = strings.TrimSpace(prefix)
	if len([]rune(prefix)) > maxFilenamePrefix {
		prefix = string([]rune(prefix)[:maxFilenamePrefix])
	}

	prefix = strings.ToLower(strings.ReplaceAll(prefix, " ", "_"))
	if folded, _, err := transform.String(foldDiacritics, prefix); err == nil {
		prefix = folded
	}
	// đ carries a stroke, not a combining mark, so NFD leaves it alone.
	prefix = strings.ReplaceAll(prefix, "đ", "d")

	var b strings.Builder
	for _, r := range prefix {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	prefix = strings.Trim(b.String(), "_")
	if prefix == "" {
		prefix = fallbackPrefix
	}

	now := time.Now().UTC()
	return fmt.Sprintf("%s_%06d_%s%s", now.Format("20060102_150405"), now.Nanosecond()/1000, prefix, filenameExt)
}
