// Package text splits input text into synthesizable sentence segments and
// provides the length heuristics and naming helpers used around them.
package text

import (
	"strings"
)

// SupportedLanguages maps language codes accepted by the service to display
// names. The set mirrors the languages the voice-cloning model was trained on.
var SupportedLanguages = map[string]string{
	"vi":    "Vietnamese",
	"en":    "English",
	"es":    "Spanish",
	"fr":    "French",
	"de":    "German",
	"it":    "Italian",
	"pt":    "Portuguese",
	"pl":    "Polish",
	"tr":    "Turkish",
	"ru":    "Russian",
	"nl":    "Dutch",
	"cs":    "Czech",
	"ar":    "Arabic",
	"zh-cn": "Chinese (Simplified)",
	"ja":    "Japanese",
	"hu":    "Hungarian",
	"ko":    "Korean",
	"hi":    "Hindi",
}

// IsSupported reports whether lang is a member of the supported set.
func IsSupported(lang string) bool {
	_, ok := SupportedLanguages[strings.ToLower(lang)]
	return ok
}

// ideographic languages delimit sentences with a dedicated full stop rather
// than Latin punctuation.
func isIdeographic(lang string) bool {
	return lang == "ja" || lang == "zh-cn"
}

// Segment splits text into an ordered sequence of trimmed, non-empty
// sentence segments. Japanese and Simplified Chinese split on the ideographic
// full stop; Vietnamese uses the dedicated sentence tokenizer; every other
// language splits on `.`, `!` and `?`.
func Segment(text, lang string) []string {
	lang = strings.ToLower(lang)

	switch {
	case isIdeographic(lang):
		return splitOn(text, "。")
	case lang == "vi":
		return tokenizeVietnamese(text)
	default:
		return splitPunctuation(text)
	}
}

func splitOn(text, delim string) []string {
	var segments []string
	for _, s := range strings.Split(text, delim) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// splitPunctuation cuts after each terminator, keeping the terminator with
// its sentence.
func splitPunctuation(text string) []string {
	var segments []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			segments = append(segments, s)
		}
		current.Reset()
	}

	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()

	return segments
}

// Sample-count coefficients per word-count band. Short inputs make the model
// prone to trailing artifact audio; the cap truncates the suspect tail
// without re-running inference.
const (
	bandTinyPerWord    = 18000
	bandTinyPerPunct   = 1500
	bandShortPerWord   = 15000
	bandShortPerPunct  = 2000
	bandMediumPerWord  = 13000
	bandMediumPerPunct = 2000
)

// NoKeepLengthCap is the sentinel KeepLength returns when no truncation
// should be applied.
const NoKeepLengthCap = -1

// KeepLength returns a sample-count cap for the synthesized audio of one
// segment, or NoKeepLengthCap when the segment is long enough (>= 10 words)
// or the language is ideographic.
func KeepLength(segment, lang string) int {
	if isIdeographic(strings.ToLower(lang)) {
		return NoKeepLengthCap
	}

	words := len(strings.Fields(segment))
	if words == 0 {
		return NoKeepLengthCap
	}

	punct := 0
	for _, p := range []string{".", "!", "?", ","} {
		punct += strings.Count(segment, p)
	}

	switch {
	case words < 3:
		return bandTinyPerWord*words + bandTinyPerPunct*punct
	case words < 5:
		return bandShortPerWord*words + bandShortPerPunct*punct
	case words < 10:
		return bandMediumPerWord*words + bandMediumPerPunct*punct
	default:
		return NoKeepLengthCap
	}
}

// Abbreviations that a Vietnamese sentence must not be cut after even though
// they end with a period.
var viAbbreviations = map[string]struct{}{
	"tp":  {},
	"tt":  {},
	"ts":  {},
	"ths": {},
	"gs":  {},
	"pgs": {},
	"ub":  {},
	"st":  {},
	"tr":  {},
}

// tokenizeVietnamese is a terminator-aware sentence splitter: it cuts on
// `.`, `!`, `?` but keeps decimal numbers, ellipses and common abbreviations
// intact.
func tokenizeVietnamese(text string) []string {
	runes := []rune(text)
	var segments []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			segments = append(segments, s)
		}
		current.Reset()
	}

	for i, r := range runes {
		current.WriteRune(r)

		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if r == '.' {
			// Decimal number: digit on both sides.
			if i > 0 && i+1 < len(runes) && isDigit(runes[i-1]) && isDigit(runes[i+1]) {
				continue
			}
			// Part of an ellipsis.
			if i+1 < len(runes) && runes[i+1] == '.' {
				continue
			}
			if _, ok := viAbbreviations[lastWordLower(runes[:i])]; ok {
				continue
			}
		}
		flush()
	}
	flush()

	return segments
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func lastWordLower(runes []rune) string {
	end := len(runes)
	start := end
	for start > 0 && runes[start-1] != ' ' && runes[start-1] != '\n' && runes[start-1] != '\t' {
		start--
	}
	return strings.ToLower(string(runes[start:end]))
}
