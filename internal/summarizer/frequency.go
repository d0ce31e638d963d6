// Package summarizer produces short extractive summaries of ingested text.
package summarizer

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/textutil"
)

// DefaultMaxSentences is used when the caller asks for a non-positive count.
const DefaultMaxSentences = 5

// FrequencySummarizer keeps the sentences whose content words recur most
// across the text, in their original order.
type FrequencySummarizer struct{}

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

type rankedSentence struct {
	pos   int
	score float64
}

// Summarize returns at most maxSentences sentences of text joined by spaces.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sentences := textutil.Sentences(text)
	if len(sentences) <= maxSentences {
		return strings.Join(sentences, " "), nil
	}

	weights := termWeights(sentences)
	ranked := make([]rankedSentence, len(sentences))
	for i, sent := range sentences {
		ranked[i] = rankedSentence{pos: i, score: sentenceScore(sent, weights)}
	}
	// stable so equal scores keep the earlier sentence
	slices.SortStableFunc(ranked, func(a, b rankedSentence) int {
		return cmp.Compare(b.score, a.score)
	})

	keep := ranked[:maxSentences]
	slices.SortFunc(keep, func(a, b rankedSentence) int { return cmp.Compare(a.pos, b.pos) })

	picked := make([]string, len(keep))
	for i, r := range keep {
		picked[i] = sentences[r.pos]
	}
	return strings.Join(picked, " "), nil
}

// termWeights counts content words over all sentences, scaled so the most
// frequent word weighs 1.
func termWeights(sentences []string) map[string]float64 {
	counts := make(map[string]float64)
	var top float64
	for _, sent := range sentences {
		for _, term := range textutil.Terms(sent) {
			counts[term]++
			top = max(top, counts[term])
		}
	}
	for term := range counts {
		counts[term] /= top
	}
	return counts
}

// sentenceScore sums the weights of a sentence's words, damped by the square
// root of its length so long sentences do not win on size alone.
func sentenceScore(sentence string, weights map[string]float64) float64 {
	words := textutil.Words(sentence)
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += weights[w]
	}
	return sum / math.Sqrt(float64(len(words)))
}
