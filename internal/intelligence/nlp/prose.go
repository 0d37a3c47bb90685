// Package nlp adapts the prose toolkit, the snowball stemmer and
// golang.org/x/text to the analyzer interfaces of the claim package.
package nlp

import (
	"sync"

	"github.com/jdkato/prose/tag"
	"github.com/jdkato/prose/tokenize"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Tokenizer
// ─────────────────────────────────────────────────────────────────────────────

// ProseTokenizer splits text with the Penn Treebank word tokenizer.
type ProseTokenizer struct {
	tb *tokenize.TreebankWordTokenizer
}

var _ claim.Tokenizer = (*ProseTokenizer)(nil)

func NewProseTokenizer() *ProseTokenizer {
	return &ProseTokenizer{tb: tokenize.NewTreebankWordTokenizer()}
}

// Tokenize never fails; the error is part of the claim.Tokenizer contract.
func (t *ProseTokenizer) Tokenize(text string) ([]string, error) {
	return t.tb.Tokenize(text), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tagger
// ─────────────────────────────────────────────────────────────────────────────

// PerceptronTagger wraps prose's averaged perceptron tagger. The model is
// loaded once, on first use, and shared by every caller.
type PerceptronTagger struct {
	once  sync.Once
	mu    sync.Mutex
	model *tag.PerceptronTagger
}

var _ claim.Tagger = (*PerceptronTagger)(nil)

func NewPerceptronTagger() *PerceptronTagger {
	return &PerceptronTagger{}
}

// Warm loads the model ahead of the first Tag call.
func (p *PerceptronTagger) Warm() {
	p.once.Do(func() { p.model = tag.NewPerceptronTagger() })
}

// Tag tags tokens with Penn Treebank tags.
func (p *PerceptronTagger) Tag(tokens []string) ([]claim.TaggedToken, error) {
	if len(tokens) == 0 {
		return []claim.TaggedToken{}, nil
	}
	p.Warm()
	if p.model == nil {
		return nil, errors.New(errors.ErrCodeTaggingFailed, "perceptron model unavailable")
	}

	p.mu.Lock()
	raw := p.model.Tag(tokens)
	p.mu.Unlock()

	out := make([]claim.TaggedToken, len(raw))
	for i, t := range raw {
		out[i] = claim.TaggedToken{Word: t.Text, Tag: t.Tag}
	}
	return out, nil
}
