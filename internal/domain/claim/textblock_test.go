package claim

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/turtacn/ClaimLens/pkg/errors"
)

func TestNewTextBlock_RequiresTokenizer(t *testing.T) {
	_, err := NewTextBlock("text", nil, nil)
	assert.ErrorIs(t, err, ErrMissingAnalyzer)
}

func TestNewTextBlock_TokenizerError(t *testing.T) {
	_, err := NewTextBlock("text", fakeTokenizer{err: errors.New("boom")}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTaggingFailed))
}

func TestTextBlock_WithoutNormalizer(t *testing.T) {
	b, err := NewTextBlock("The blank, the Blank.", fakeTokenizer{}, nil)
	require.NoError(t, err)

	assert.Equal(t, "The blank, the Blank.", b.Text())
	assert.Equal(t, []string{"The", "blank", ",", "the", "Blank", "."}, b.Words())
	assert.Equal(t, b.Words(), b.FilteredTokens())
	assert.Equal(t, 6, b.WordCount())
	assert.Equal(t, 1, b.UnfilteredCounter()["blank"])
	assert.Equal(t, 1, b.UnfilteredCounter()["Blank"])
	assert.Equal(t, 3, b.CharacterCounter()[' '])
	assert.Equal(t, 2, b.CharacterCounter()['b']+b.CharacterCounter()['B'])

	// No normalizer means no stopwords.
	freq := b.WordFrequency(true, false)
	assert.Equal(t, map[string]float64{"the": 2, "blank": 2}, freq)
}

func TestTextBlock_FilteredTokens(t *testing.T) {
	b, err := NewTextBlock("The widget of US1234567 is heating.", fakeTokenizer{}, fakeNormalizer{})
	require.NoError(t, err)

	assert.Contains(t, b.Words(), "US1234567")
	assert.Equal(t, []string{"widget", "patentno", "is", "heating"}, b.FilteredTokens())
	assert.Equal(t, 1, b.FilteredCounter()["patentno"])
}

func TestTextBlock_WordFrequency(t *testing.T) {
	b, err := NewTextBlock("The blank and the sheet; the blank.", fakeTokenizer{}, fakeNormalizer{})
	require.NoError(t, err)

	raw := b.WordFrequency(false, false)
	assert.Equal(t, 3.0, raw["the"])
	assert.Equal(t, 2.0, raw["blank"])
	assert.NotContains(t, raw, ";")

	norm := b.WordFrequency(true, true)
	assert.NotContains(t, norm, "the")
	assert.InDelta(t, 2.0/3.0, norm["blank"], 1e-9)
	assert.InDelta(t, 1.0/3.0, norm["sheet"], 1e-9)

	empty, err := NewTextBlock("", fakeTokenizer{}, fakeNormalizer{})
	require.NoError(t, err)
	assert.Empty(t, empty.WordFrequency(true, true))
}

func TestTextBlock_AppearsIn(t *testing.T) {
	b, err := NewTextBlock("A Sensor on the frame.", fakeTokenizer{}, nil)
	require.NoError(t, err)
	assert.True(t, b.AppearsIn("sensor"))
	assert.True(t, b.AppearsIn("FRAME"))
	assert.False(t, b.AppearsIn("sens"))
}

func TestTextBlock_BagOfWords(t *testing.T) {
	b, err := NewTextBlock("The Heating of blanks, 42 times.", fakeTokenizer{}, fakeNormalizer{})
	require.NoError(t, err)

	all, err := b.BagOfWords(DefaultBagOfWordsOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"heat", "blank", "time"}, all)

	none, err := b.BagOfWords(BagOfWordsOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "heating", "of", "blanks", ",", "42", "times", "."}, none)

	onlyWords, err := b.BagOfWords(BagOfWordsOptions{CleanNonWords: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "heating", "of", "blanks", "times"}, onlyWords)
}

func TestTextBlock_TokenIDs(t *testing.T) {
	b, err := NewTextBlock("the widget and the gizmo", fakeTokenizer{}, fakeNormalizer{})
	require.NoError(t, err)

	ids, err := b.TokenIDs(map[string]int{UnknownToken: 0, "the": 1, "widget": 2})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, ids)

	_, err = b.TokenIDs(map[string]int{"widget": 1})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeVocabularyInvalid))
}
