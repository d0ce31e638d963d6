// Package extractive answers offline by summarising the retrieved context
// instead of calling a language model.
package extractive

import (
	"context"
	"strings"

	"docrag/internal/domain"
	"docrag/internal/prompt"
	"docrag/internal/textutil"
)

// NoAnswer is returned when the prompt carries no retrieved context.
const NoAnswer = "I couldn't find anything relevant in the knowledge base."

// Generator picks the context sentences that best cover the question.
type Generator struct {
	summarizer   domain.Summarizer
	maxSentences int
}

var _ domain.Generator = (*Generator)(nil)

func NewGenerator(s domain.Summarizer, maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return &Generator{summarizer: s, maxSentences: maxSentences}
}

func (g *Generator) Name() string { return "extractive" }

// Generate ignores the system instruction. Sentences sharing a term with the
// question are preferred; the whole context is summarised when none do.
func (g *Generator) Generate(_ context.Context, _ string, p string) (domain.Generation, error) {
	ctx, question, ok := prompt.Parse(p)
	if !ok {
		ctx, question = p, ""
	}
	if ctx == prompt.NoContext || strings.TrimSpace(ctx) == "" {
		return domain.Generation{Text: NoAnswer}, nil
	}

	text := ctx
	if relevant := relevantSentences(ctx, question); len(relevant) > 0 {
		text = strings.Join(relevant, " ")
	}
	summary, err := g.summarizer.Summarize(text, g.maxSentences)
	if err != nil {
		return domain.Generation{}, err
	}
	return domain.Generation{Text: summary}, nil
}

func relevantSentences(ctx, question string) []string {
	terms := textutil.TermSet(question)
	if len(terms) == 0 {
		return nil
	}
	var out []string
	for _, sent := range textutil.Sentences(ctx) {
		for _, w := range textutil.Terms(sent) {
			if _, ok := terms[w]; ok {
				out = append(out, sent)
				break
			}
		}
	}
	return out
}
