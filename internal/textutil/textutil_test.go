package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"paris", "is", "the", "capital", "of", "france"}, Words("Paris is the capital of France."))
	assert.Equal(t, []string{"it's", "2024"}, Words("It's 2024!"))
	assert.Empty(t, Words("  ...  "))
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"capital", "france"}, Terms("What is the capital of France?"))
	assert.True(t, IsStopword("the"))
	assert.False(t, IsStopword("france"))
}

func TestTermSet(t *testing.T) {
	set := TermSet("blue sky blue sea")
	assert.Len(t, set, 3)
	assert.Contains(t, set, "sky")
}

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"The sky is blue.", "The grass is green."}, Sentences("The sky is blue. The grass is green."))
	assert.Equal(t, []string{"no punctuation here"}, Sentences("  no punctuation here "))
	assert.Nil(t, Sentences("   "))
	assert.Equal(t, []string{"Cut here.", "and the rest"}, Sentences("Cut here. and the rest"))
}
