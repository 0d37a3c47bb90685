package claim

import (
	"github.com/turtacn/ClaimLens/pkg/errors"
)

// Category is the binary claim classification.
type Category string

const (
	CategoryMethod Category = "method"
	CategorySystem Category = "system"
)

// String returns the category label.
func (c Category) String() string { return string(c) }

// IsValid reports whether c is one of the known categories.
func (c Category) IsValid() bool {
	return c == CategoryMethod || c == CategorySystem
}

// Penn Treebank tags the pipeline relies on.
const (
	TagDeterminer        = "DT"
	TagPossessivePronoun = "PRP$"
	TagGerund            = "VBG"
	TagPossessiveMarker  = "POS"
	comprisingWord       = "comprising"
)

// TaggedToken is a (word, part-of-speech tag) pair.
type TaggedToken struct {
	Word string `json:"word"`
	Tag  string `json:"tag"`
}

// LabeledToken is a tagged token with the noun-phrase ID it belongs to.
// NP is 0 when the token is outside every noun phrase.
type LabeledToken struct {
	Word string `json:"word"`
	Tag  string `json:"tag"`
	NP   int    `json:"np"`
}

// Tokenizer splits text into word tokens.
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// Tagger assigns a part-of-speech tag to every token, in order.
type Tagger interface {
	Tag(tokens []string) ([]TaggedToken, error)
}

// Normalizer produces the filtered token view of a text block. Stopword lists
// and stemming rules live in the implementation, not in this package.
type Normalizer interface {
	// Prepare rewrites raw text before tokenization.
	Prepare(text string) string
	// Filter turns raw tokens into filtered tokens.
	Filter(tokens []string) []string
	IsStopword(word string) bool
	Stem(word string) string
}

// ─────────────────────────────────────────────────────────────────────────────
// Sentinel errors
// ─────────────────────────────────────────────────────────────────────────────

var (
	ErrTaggingFailed    = errors.New(errors.ErrCodeTaggingFailed, "part-of-speech tagging failed")
	ErrTagCountMismatch = errors.New(errors.ErrCodeTaggingFailed, "tagger returned a different number of tokens")
	ErrInvalidOverride  = errors.New(errors.ErrCodeClaimOverrideInvalid, "claim number must be positive and dependency must not be negative")
	ErrMissingAnalyzer  = errors.New(errors.ErrCodeBadRequest, "a tokenizer and a tagger are required")
	ErrInvalidGrammar   = errors.New(errors.ErrCodeGrammarInvalid, "invalid chunk grammar")
	ErrClaimNotFound    = errors.New(errors.ErrCodeClaimNotFound, "claim not found")
)
