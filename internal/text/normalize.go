package text

import (
	"strings"
	"unicode"
)

// Shorthand expansions applied during Vietnamese normalization. Matching is
// token-wise against the word with surrounding punctuation stripped, so "dc,"
// expands but "karaoke" does not.
var viShorthand = map[string]string{
	"ko": "không",
	"k":  "không",
	"j":  "gì",
	"dc": "được",
	"đc": "được",
	"vs": "với",
	"mk": "mình",
}

// NormalizeVietnamese prepares Vietnamese text for synthesis: shorthand
// expansion, punctuation repair, quote stripping and a few pronunciation
// substitutions.
func NormalizeVietnamese(text string) string {
	normalized := ttsNorm(text)

	// Applied sequentially: earlier repairs feed later ones (".." collapses
	// before the stray-space rules run).
	for _, r := range []struct{ from, to string }{
		{"..", "."},
		{"!.", "!"},
		{"?.", "?"},
		{" .", "."},
		{" ,", ","},
		{`"`, ""},
		{"'", ""},
		{"A.I", "Ây Ai"},
		{"AI", "Ây Ai"},
	} {
		normalized = strings.ReplaceAll(normalized, r.from, r.to)
	}

	return normalized
}

// ttsNorm strips control characters, collapses whitespace and expands common
// texting shorthand word by word.
func ttsNorm(text string) string {
	var b strings.Builder
	for _, r := range text {
		if !unicode.IsControl(r) || r == '\n' || r == '\t' {
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		core := strings.TrimFunc(w, unicode.IsPunct)
		if core == "" {
			continue
		}
		if rep, ok := viShorthand[strings.ToLower(core)]; ok {
			words[i] = strings.Replace(w, core, rep, 1)
		}
	}
	return strings.Join(words, " ")
}
