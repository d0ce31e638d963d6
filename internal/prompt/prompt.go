// Package prompt turns a question and its retrieved passages into the single
// grounded prompt sent to a generator.
package prompt

import (
	"strings"
)

const (
	// SystemInstruction accompanies every prompt as the system message.
	SystemInstruction = "You are a helpful assistant that answers using the given context."

	// NoContext stands in for the context when retrieval returned nothing.
	NoContext = "No relevant documents found."

	header         = "Answer the question based on context below:\n\n"
	contextLabel   = "Context: "
	questionMarker = "\n\nQuestion: "
)

// Assemble joins passages with newlines, in rank order, into the prompt template.
func Assemble(query string, passages []string) string {
	ctx := strings.Join(passages, "\n")
	if len(passages) == 0 {
		ctx = NoContext
	}
	var b strings.Builder
	b.Grow(len(header) + len(contextLabel) + len(ctx) + len(questionMarker) + len(query))
	b.WriteString(header)
	b.WriteString(contextLabel)
	b.WriteString(ctx)
	b.WriteString(questionMarker)
	b.WriteString(query)
	return b.String()
}

// Parse splits a prompt built by Assemble back into its context and question.
// ok is false when p does not follow the template.
func Parse(p string) (context, question string, ok bool) {
	rest, found := strings.CutPrefix(p, header+contextLabel)
	if !found {
		return "", "", false
	}
	i := strings.LastIndex(rest, questionMarker)
	if i < 0 {
		return "", "", false
	}
	return rest[:i], rest[i+len(questionMarker):], true
}
