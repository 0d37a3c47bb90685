package claim

// Parser holds the analyzers and defaults shared by every claim it parses.
// It is safe for concurrent use when its tokenizer, tagger and normalizer are.
type Parser struct {
	base []Option
}

// NewParser validates the shared options once. Per-claim options passed to
// Parse are applied after them.
func NewParser(tokenizer Tokenizer, tagger Tagger, opts ...Option) (*Parser, error) {
	base := make([]Option, 0, len(opts)+2)
	base = append(base, WithTokenizer(tokenizer), WithTagger(tagger))
	base = append(base, opts...)
	if _, err := buildOptions(base); err != nil {
		return nil, err
	}
	return &Parser{base: base}, nil
}

// Parse builds a Claim from text.
func (p *Parser) Parse(text string, opts ...Option) (*Claim, error) {
	all := make([]Option, 0, len(p.base)+len(opts))
	all = append(all, p.base...)
	all = append(all, opts...)
	return New(text, all...)
}

// ParseSet splits a claims block with SplitClaims and parses each claim.
func (p *Parser) ParseSet(text string) (*Claimset, error) {
	parts := SplitClaims(text)
	claims := make([]*Claim, 0, len(parts))
	for _, part := range parts {
		c, err := p.Parse(part)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return NewClaimset(claims...), nil
}

// Analyzers returns the parser's tokenizer and normalizer for callers that
// need text statistics outside a claim.
func (p *Parser) Analyzers() (Tokenizer, Normalizer) {
	o, _ := buildOptions(p.base)
	return o.tokenizer, o.normalizer
}
