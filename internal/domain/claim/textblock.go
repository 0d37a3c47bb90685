package claim

import (
	"strings"
	"unicode"

	"github.com/turtacn/ClaimLens/pkg/errors"
)

// UnknownToken is the vocabulary entry used for tokens missing from a vocabulary.
const UnknownToken = "_UNK_"

// TextBlock is a unit of text with its raw and filtered token views. Both
// views are computed when the block is built.
type TextBlock struct {
	text       string
	words      []string
	filtered   []string
	tokenizer  Tokenizer
	normalizer Normalizer
}

// NewTextBlock tokenizes text. The normalizer may be nil, in which case the
// filtered view equals the raw word view and no stopwords are recognised.
func NewTextBlock(text string, tokenizer Tokenizer, normalizer Normalizer) (*TextBlock, error) {
	if tokenizer == nil {
		return nil, ErrMissingAnalyzer
	}
	var words []string
	if strings.TrimSpace(text) != "" {
		var err error
		words, err = tokenizer.Tokenize(text)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTaggingFailed, "tokenization failed")
		}
	}
	return newTextBlock(text, words, tokenizer, normalizer)
}

func newTextBlock(text string, words []string, tokenizer Tokenizer, normalizer Normalizer) (*TextBlock, error) {
	b := &TextBlock{
		text:       text,
		words:      words,
		tokenizer:  tokenizer,
		normalizer: normalizer,
	}
	if normalizer == nil || len(words) == 0 {
		b.filtered = append([]string(nil), words...)
		return b, nil
	}
	prepared := normalizer.Prepare(text)
	raw := words
	if prepared != text {
		var err error
		raw, err = tokenizer.Tokenize(prepared)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeTaggingFailed, "tokenization failed")
		}
	}
	b.filtered = normalizer.Filter(raw)
	return b, nil
}

// Text returns the block's text.
func (b *TextBlock) Text() string { return b.text }

// Words returns a copy of the raw tokens.
func (b *TextBlock) Words() []string { return append([]string(nil), b.words...) }

// FilteredTokens returns a copy of the normalised tokens.
func (b *TextBlock) FilteredTokens() []string { return append([]string(nil), b.filtered...) }

// WordCount is the number of raw tokens.
func (b *TextBlock) WordCount() int { return len(b.words) }

// UnfilteredCounter counts raw tokens.
func (b *TextBlock) UnfilteredCounter() map[string]int { return countStrings(b.words) }

// FilteredCounter counts filtered tokens.
func (b *TextBlock) FilteredCounter() map[string]int { return countStrings(b.filtered) }

// CharacterCounter counts every rune of the text.
func (b *TextBlock) CharacterCounter() map[rune]int {
	out := make(map[rune]int)
	for _, r := range b.text {
		out[r]++
	}
	return out
}

// WordFrequency counts lowercased alphabetic words, optionally skipping
// stopwords. With normalize the counts are divided by their total.
func (b *TextBlock) WordFrequency(stopwords, normalize bool) map[string]float64 {
	freq := make(map[string]float64)
	var total float64
	for _, w := range b.words {
		if !isAlpha(w) {
			continue
		}
		lw := strings.ToLower(w)
		if stopwords && b.isStopword(lw) {
			continue
		}
		freq[lw]++
		total++
	}
	if normalize && total > 0 {
		for k := range freq {
			freq[k] /= total
		}
	}
	return freq
}

// AppearsIn reports whether term is one of the block's words, ignoring case.
func (b *TextBlock) AppearsIn(term string) bool {
	for _, w := range b.words {
		if strings.EqualFold(w, term) {
			return true
		}
	}
	return false
}

// BagOfWordsOptions selects the cleaning steps of BagOfWords.
type BagOfWordsOptions struct {
	CleanNonWords  bool
	CleanStopwords bool
	Stem           bool
}

// DefaultBagOfWordsOptions enables every cleaning step.
func DefaultBagOfWordsOptions() BagOfWordsOptions {
	return BagOfWordsOptions{CleanNonWords: true, CleanStopwords: true, Stem: true}
}

// BagOfWords tokenizes the lowercased text and applies the selected cleaning
// steps. Stopword removal and stemming need a normalizer and are skipped
// without one.
func (b *TextBlock) BagOfWords(opts BagOfWordsOptions) ([]string, error) {
	return bagOfWords(strings.ToLower(b.text), b.tokenizer, b.normalizer, opts)
}

func bagOfWords(lowered string, tokenizer Tokenizer, normalizer Normalizer, opts BagOfWordsOptions) ([]string, error) {
	if strings.TrimSpace(lowered) == "" {
		return nil, nil
	}
	tokens, err := tokenizer.Tokenize(lowered)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTaggingFailed, "tokenization failed")
	}
	out := tokens[:0:0]
	for _, t := range tokens {
		if opts.CleanNonWords && !isAlpha(t) {
			continue
		}
		if opts.CleanStopwords && normalizer != nil && normalizer.IsStopword(t) {
			continue
		}
		if opts.Stem && normalizer != nil {
			t = normalizer.Stem(t)
		}
		out = append(out, t)
	}
	return out, nil
}

// TokenIDs maps filtered tokens through vocab, using the UnknownToken entry
// for tokens the vocabulary lacks.
func (b *TextBlock) TokenIDs(vocab map[string]int) ([]int, error) {
	unk, hasUnk := vocab[UnknownToken]
	ids := make([]int, len(b.filtered))
	for i, t := range b.filtered {
		id, ok := vocab[t]
		if !ok {
			if !hasUnk {
				return nil, errors.New(errors.ErrCodeVocabularyInvalid, "vocabulary has no unknown-token entry").
					WithDetail("token=" + t)
			}
			id = unk
		}
		ids[i] = id
	}
	return ids, nil
}

func (b *TextBlock) isStopword(w string) bool {
	return b.normalizer != nil && b.normalizer.IsStopword(w)
}

func countStrings(items []string) map[string]int {
	out := make(map[string]int, len(items))
	for _, s := range items {
		out[s]++
	}
	return out
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
