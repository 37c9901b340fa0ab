package text_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voxserve/voxserve/internal/text"
)

func TestSegmentPunctuationLanguages(t *testing.T) {
	t.Parallel()

	segments := text.Segment("Hello world. How are you? Fine!", "en")
	require.Equal(t, []string{"Hello world.", "How are you?", "Fine!"}, segments)
}

func TestSegmentIdeographic(t *testing.T) {
	t.Parallel()

	segments := text.Segment("こんにちは。元気ですか。", "ja")
	require.Equal(t, []string{"こんにちは", "元気ですか"}, segments)

	segments = text.Segment("你好。今天天气很好。", "zh-cn")
	require.Len(t, segments, 2)
}

func TestSegmentVietnamese(t *testing.T) {
	t.Parallel()

	segments := text.Segment("Xin chào bạn. Hôm nay trời đẹp quá!", "vi")
	require.Equal(t, []string{"Xin chào bạn.", "Hôm nay trời đẹp quá!"}, segments)
}

func TestSegmentVietnameseProtectsDecimalsAndAbbreviations(t *testing.T) {
	t.Parallel()

	segments := text.Segment("Giá là 3.5 triệu đồng. Cảm ơn.", "vi")
	require.Equal(t, []string{"Giá là 3.5 triệu đồng.", "Cảm ơn."}, segments)

	segments = text.Segment("TP. Hồ Chí Minh rất lớn. Tôi thích nơi này.", "vi")
	require.Equal(t, []string{"TP. Hồ Chí Minh rất lớn.", "Tôi thích nơi này."}, segments)
}

func TestSegmentTrimsAndDropsEmpty(t *testing.T) {
	t.Parallel()

	segments := text.Segment("  One.   Two!   ", "en")
	require.Equal(t, []string{"One.", "Two!"}, segments)

	require.Empty(t, text.Segment("   ", "en"))
	require.Empty(t, text.Segment("", "vi"))
}

// Concatenating the segments must reconstruct the input's non-whitespace
// content for every language family.
func TestSegmentReconstructsContent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		lang  string
		input string
	}{
		{"en", "First sentence. Second one! A third? Yes."},
		{"vi", "Xin chào. Hẹn gặp lại!"},
		{"ja", "一。二。三。"},
	}

	stripWS := func(s string) string {
		return strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\t' {
				return -1
			}
			return r
		}, s)
	}

	for _, tc := range cases {
		joined := strings.Join(text.Segment(tc.input, tc.lang), "")
		want := stripWS(tc.input)
		if tc.lang == "ja" {
			// The ideographic delimiter is consumed by the split.
			want = strings.ReplaceAll(want, "。", "")
		}
		require.Equal(t, want, stripWS(joined), "lang %s", tc.lang)
	}
}

func TestKeepLengthBands(t *testing.T) {
	t.Parallel()

	// <3 words: 18000 per word + 1500 per punctuation mark.
	require.Equal(t, 18000*2+1500, text.KeepLength("hai từ.", "vi"))
	// <5 words: 15000 per word + 2000 per punctuation mark.
	require.Equal(t, 15000*4+2000, text.KeepLength("one two three four.", "en"))
	// <10 words: 13000 per word + 2000 per punctuation mark.
	require.Equal(t, 13000*6+2000*2, text.KeepLength("a b c d, e f.", "en"))
}

func TestKeepLengthNoCapSentinels(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 10)
	require.Equal(t, text.NoKeepLengthCap, text.KeepLength(long, "en"))
	require.Equal(t, text.NoKeepLengthCap, text.KeepLength("", "en"))
	require.Equal(t, text.NoKeepLengthCap, text.KeepLength("短い文。", "ja"))
	require.Equal(t, text.NoKeepLengthCap, text.KeepLength("你好", "zh-cn"))
}

func TestKeepLengthMonotonicWithinBands(t *testing.T) {
	t.Parallel()

	prev := 0
	for words := 1; words < 10; words++ {
		segment := strings.TrimSpace(strings.Repeat("từ ", words))
		keep := text.KeepLength(segment, "vi")
		require.Positive(t, keep, "words=%d", words)
		// Band boundaries change the coefficient but the cap never shrinks
		// as the word count grows.
		require.GreaterOrEqual(t, keep, prev, "words=%d", words)
		prev = keep
	}
}

func TestIsSupported(t *testing.T) {
	t.Parallel()

	require.True(t, text.IsSupported("vi"))
	require.True(t, text.IsSupported("ZH-CN"))
	require.False(t, text.IsSupported("xx"))
	require.False(t, text.IsSupported(""))
}
