package nlp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
)

func TestProseTokenizer(t *testing.T) {
	tok := NewProseTokenizer()
	words, err := tok.Tokenize("A method of making a widget, comprising: heating a blank.")
	require.NoError(t, err)

	assert.Equal(t, "A", words[0])
	assert.Contains(t, words, "widget")
	assert.Contains(t, words, ",")
	assert.Contains(t, words, ":")
	assert.Equal(t, ".", words[len(words)-1])
}

func TestPerceptronTagger(t *testing.T) {
	tagger := NewPerceptronTagger()

	empty, err := tagger.Tag(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	tokens := []string{"The", "device", "comprises", "a", "sensor", "."}
	tagged, err := tagger.Tag(tokens)
	require.NoError(t, err)
	require.Len(t, tagged, len(tokens))
	for i, tt := range tagged {
		assert.Equal(t, tokens[i], tt.Word)
		assert.NotEmpty(t, tt.Tag)
	}
	assert.Equal(t, "DT", tagged[0].Tag)
	assert.Equal(t, "DT", tagged[3].Tag)
}

func TestNewClaimParser(t *testing.T) {
	p, err := NewClaimParser(Config{}, nil)
	require.NoError(t, err)

	c, err := p.Parse("1. A method of making a widget, comprising: heating a blank; and cooling the blank.")
	require.NoError(t, err)
	n, ok := c.Number()
	assert.True(t, ok)
	assert.Equal(t, 1, n)
	assert.Equal(t, claim.CategoryMethod, c.Category())
	assert.Equal(t, 0, c.Dependency())
	assert.GreaterOrEqual(t, len(c.Features()), 3)

	for _, tok := range c.POS() {
		if tok.Word == "comprising" {
			assert.Equal(t, claim.TagGerund, tok.Tag)
		}
	}
	filtered := c.FilteredTokens()
	assert.NotEmpty(t, filtered)
	for _, stop := range []string{"a", "of", "the", "and"} {
		assert.NotContains(t, filtered, stop)
	}
	assert.Contains(t, filtered, "widget")
	assert.Contains(t, c.Words(), "of")

	c, err = p.Parse("2. The system of claim 1, wherein the device comprises a sensor.")
	require.NoError(t, err)
	assert.Equal(t, claim.CategorySystem, c.Category())
	assert.Equal(t, 1, c.Dependency())
}

func TestNewClaimParser_BadConfig(t *testing.T) {
	_, err := NewClaimParser(Config{StopwordsFile: "/nonexistent/vocab.yaml"}, nil)
	assert.Error(t, err)

	_, err = NewClaimParser(Config{Grammar: []claim.ChunkRule{{Name: "bad", Pattern: "NN"}}}, nil)
	assert.ErrorIs(t, err, claim.ErrInvalidGrammar)
}
