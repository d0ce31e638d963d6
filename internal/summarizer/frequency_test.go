package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_PicksFrequentSentencesInOrder(t *testing.T) {
	text := "Go channels carry values between goroutines. " +
		"The weather was pleasant yesterday. " +
		"Buffered channels let goroutines send without blocking. " +
		"Closing channels signals goroutines that no more values come."

	out, err := NewFrequencySummarizer().Summarize(text, 2)
	require.NoError(t, err)
	assert.NotContains(t, out, "weather")

	assert.Equal(t, 2, strings.Count(out, "."), "summary %q", out)
	buffered := strings.Index(out, "Buffered channels")
	closing := strings.Index(out, "Closing channels")
	require.GreaterOrEqual(t, buffered, 0, "summary %q", out)
	assert.Less(t, buffered, closing)
}

func TestSummarize_Bounds(t *testing.T) {
	s := NewFrequencySummarizer()

	out, err := s.Summarize("", 3)
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = s.Summarize("Only one sentence here.", 3)
	require.NoError(t, err)
	assert.Equal(t, "Only one sentence here.", out)

	out, err = s.Summarize("no punctuation at all", 0)
	require.NoError(t, err)
	assert.Equal(t, "no punctuation at all", out)
}

func TestSummarize_DefaultCount(t *testing.T) {
	text := strings.Repeat("Alpha beta gamma. ", 8)
	out, err := NewFrequencySummarizer().Summarize(text, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSentences, strings.Count(out, "."))
}
