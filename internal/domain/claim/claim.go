// Package claim parses patent claim text into a structured, immutable Claim:
// claim number, dependency, category, tagged tokens, noun phrases with stable
// per-claim IDs and feature clauses.
//
// Tokenization and tagging are injected through the Tokenizer and Tagger
// interfaces; the prose-backed implementations live in internal/intelligence/nlp.
package claim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Options
// ─────────────────────────────────────────────────────────────────────────────

type options struct {
	number     *int
	dependency *int
	tokenizer  Tokenizer
	tagger     Tagger
	normalizer Normalizer
	logger     logging.Logger
	grammar    *Grammar
	err        error
}

// Option configures New.
type Option func(*options)

// WithNumber supplies a claim number that takes precedence over the parsed one.
func WithNumber(n int) Option {
	return func(o *options) { o.number = &n }
}

// WithDependency supplies a dependency that takes precedence over the parsed one.
func WithDependency(d int) Option {
	return func(o *options) { o.dependency = &d }
}

func WithTokenizer(t Tokenizer) Option {
	return func(o *options) { o.tokenizer = t }
}

func WithTagger(t Tagger) Option {
	return func(o *options) { o.tagger = t }
}

// WithNormalizer sets the normalizer behind the filtered token view.
func WithNormalizer(n Normalizer) Option {
	return func(o *options) { o.normalizer = n }
}

// WithLogger receives number and dependency mismatch warnings.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGrammar replaces the default chunk grammar. The rules are compiled once,
// when the option is created.
func WithGrammar(rules []ChunkRule) Option {
	g, err := CompileGrammar(rules)
	return func(o *options) {
		o.grammar = g
		o.err = err
	}
}

// WithCompiledGrammar replaces the default chunk grammar.
func WithCompiledGrammar(g *Grammar) Option {
	return func(o *options) { o.grammar = g }
}

func buildOptions(opts []Option) (*options, error) {
	o := &options{}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	if o.err != nil {
		return nil, o.err
	}
	if o.number != nil && *o.number <= 0 {
		return nil, ErrInvalidOverride.WithDetail(fmt.Sprintf("number=%d", *o.number))
	}
	if o.dependency != nil && *o.dependency < 0 {
		return nil, ErrInvalidOverride.WithDetail(fmt.Sprintf("dependency=%d", *o.dependency))
	}
	if o.tokenizer == nil || o.tagger == nil {
		return nil, ErrMissingAnalyzer
	}
	o.logger = logging.OrNop(o.logger)
	if o.grammar == nil {
		o.grammar = defaultGrammar
	}
	return o, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Claim
// ─────────────────────────────────────────────────────────────────────────────

// Claim is one parsed patent claim. Every derived field is computed by New;
// accessors return copies.
type Claim struct {
	TextBlock

	rawText    string
	number     int
	hasNumber  bool
	category   Category
	dependency int
	pos        []TaggedToken
	wordData   []LabeledToken
	mapping    *PhraseMap
	spans      []Span
	features   []Feature
}

// New parses raw claim text. A tokenizer and a tagger must be supplied.
//
// The leading claim number is stripped from the text; category and dependency
// are read from what remains. Supplied number and dependency values win over
// parsed ones, and a disagreement is logged as a warning. Blank text produces
// a claim with no words, phrases or features.
func New(text string, opts ...Option) (*Claim, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	ext := Extract(text)
	c := &Claim{
		rawText:    text,
		number:     ext.Number,
		hasNumber:  ext.HasNumber,
		category:   ext.Category,
		dependency: ext.Dependency,
	}

	if o.number != nil {
		if ext.HasNumber && ext.Number != *o.number {
			o.logger.Warn("detected claim number does not match supplied number",
				logging.Int("parsed", ext.Number), logging.Int("supplied", *o.number))
		}
		c.number, c.hasNumber = *o.number, true
	}
	if o.dependency != nil {
		if ext.Dependency != *o.dependency {
			o.logger.Warn("detected dependency does not match supplied dependency",
				logging.Int("parsed", ext.Dependency), logging.Int("supplied", *o.dependency))
		}
		c.dependency = *o.dependency
	}

	var words []string
	if strings.TrimSpace(ext.Text) != "" {
		if words, err = o.tokenizer.Tokenize(ext.Text); err != nil {
			return nil, ErrTaggingFailed.WithCause(err)
		}
	}

	tagged, err := tagWords(o.tagger, words)
	if err != nil {
		return nil, err
	}

	block, err := newTextBlock(ext.Text, words, o.tokenizer, o.normalizer)
	if err != nil {
		return nil, err
	}
	c.TextBlock = *block

	c.pos = tagged
	c.wordData, c.mapping, c.spans = LabelNounPhrases(o.grammar, tagged)
	c.features = SegmentFeatures(ext.Text)
	return c, nil
}

// tagWords tags words and forces "comprising" to the gerund tag.
func tagWords(tagger Tagger, words []string) ([]TaggedToken, error) {
	if len(words) == 0 {
		return []TaggedToken{}, nil
	}
	tagged, err := tagger.Tag(words)
	if err != nil {
		return nil, ErrTaggingFailed.WithCause(err)
	}
	if len(tagged) != len(words) {
		return nil, ErrTagCountMismatch.WithDetail(fmt.Sprintf("tokens=%d tags=%d", len(words), len(tagged)))
	}
	out := make([]TaggedToken, len(words))
	for i, t := range tagged {
		out[i] = TaggedToken{Word: words[i], Tag: t.Tag}
		if strings.EqualFold(words[i], comprisingWord) {
			out[i].Tag = TagGerund
		}
	}
	return out, nil
}

// RawText returns the text exactly as supplied.
func (c *Claim) RawText() string { return c.rawText }

// Number returns the claim number and whether one is known.
func (c *Claim) Number() (int, bool) { return c.number, c.hasNumber }

func (c *Claim) Category() Category { return c.category }

// Dependency returns the referenced claim number, or 0 for an independent claim.
func (c *Claim) Dependency() int { return c.dependency }

func (c *Claim) IsIndependent() bool { return c.dependency == 0 }

// POS returns the tagged tokens.
func (c *Claim) POS() []TaggedToken { return append([]TaggedToken(nil), c.pos...) }

// WordData returns the tagged tokens labelled with noun-phrase IDs.
func (c *Claim) WordData() []LabeledToken { return append([]LabeledToken(nil), c.wordData...) }

// Mapping returns a copy of the canonical phrase to ID map.
func (c *Claim) Mapping() *PhraseMap { return c.mapping.Clone() }

// NounPhrases lists canonical phrases in ID order.
func (c *Claim) NounPhrases() []PhraseEntry { return c.mapping.Entries() }

// Spans returns the chunker output.
func (c *Claim) Spans() []Span { return append([]Span(nil), c.spans...) }

func (c *Claim) Features() []Feature { return append([]Feature(nil), c.features...) }

// String renders the claim as "N text", or the text alone when unnumbered.
func (c *Claim) String() string {
	if c.hasNumber {
		return strconv.Itoa(c.number) + " " + c.text
	}
	return c.text
}

// ─────────────────────────────────────────────────────────────────────────────
// Serialization view
// ─────────────────────────────────────────────────────────────────────────────

// View is the per-token output document: {"claim":{"words":[...]}}.
type View struct {
	Claim ViewBody `json:"claim"`
}

// ViewBody holds the word records.
type ViewBody struct {
	Words []WordRecord `json:"words"`
}

// WordRecord is one token. NP is 0 outside noun phrases and is rendered as ""
// in JSON.
type WordRecord struct {
	ID   int    `json:"id"`
	Word string `json:"word"`
	POS  string `json:"pos"`
	NP   int    `json:"np"`
}

type wordRecordJSON struct {
	ID   int             `json:"id"`
	Word string          `json:"word"`
	POS  string          `json:"pos"`
	NP   json.RawMessage `json:"np"`
}

var emptyNP = json.RawMessage(`""`)

// MarshalJSON writes np as an integer, or "" when the token has no phrase.
func (r WordRecord) MarshalJSON() ([]byte, error) {
	np := emptyNP
	if r.NP != 0 {
		np = json.RawMessage(strconv.Itoa(r.NP))
	}
	return json.Marshal(wordRecordJSON{ID: r.ID, Word: r.Word, POS: r.POS, NP: np})
}

// UnmarshalJSON accepts np as an integer or "".
func (r *WordRecord) UnmarshalJSON(data []byte) error {
	var raw wordRecordJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID, r.Word, r.POS, r.NP = raw.ID, raw.Word, raw.POS, 0
	np := bytes.TrimSpace(raw.NP)
	if len(np) == 0 || bytes.Equal(np, emptyNP) || bytes.Equal(np, []byte("null")) {
		return nil
	}
	n, err := strconv.Atoi(string(np))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "invalid np value")
	}
	r.NP = n
	return nil
}

// View builds the serialization view; IDs are 0-based token positions.
func (c *Claim) View() View {
	words := make([]WordRecord, len(c.wordData))
	for i, w := range c.wordData {
		words[i] = WordRecord{ID: i, Word: w.Word, POS: w.Tag, NP: w.NP}
	}
	return View{Claim: ViewBody{Words: words}}
}
