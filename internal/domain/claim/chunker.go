package claim

import (
	"fmt"
	"regexp"
	"strings"
)

// ChunkRule is one named noun-phrase pattern written in tag notation, e.g.
// "<DT|PRP\$>?<JJ>*<NN.*>+". Each <...> holds a regular expression matched
// against a whole tag and may be followed by ?, * or +.
type ChunkRule struct {
	Name    string `json:"name" yaml:"name" mapstructure:"name"`
	Pattern string `json:"pattern" yaml:"pattern" mapstructure:"pattern"`
}

// Default rule names, in priority order.
const (
	GrammarGerund     = "gerund"
	GrammarPossessive = "possessive"
	GrammarAdjectival = "adjectival"
)

// DefaultGrammar returns the noun-phrase grammar for claim text.
func DefaultGrammar() []ChunkRule {
	return []ChunkRule{
		{Name: GrammarGerund, Pattern: `<DT|PRP\$><VBG><NN.*>+`},
		{Name: GrammarPossessive, Pattern: `<DT|PRP\$><NN.*><POS><JJ>*<NN.*>+`},
		{Name: GrammarAdjectival, Pattern: `<DT|PRP\$>?<JJ>*<NN.*>+`},
	}
}

// SpanKind distinguishes noun-phrase chunks from ungrouped tokens.
type SpanKind int

const (
	SpanToken SpanKind = iota
	SpanPhrase
)

func (k SpanKind) String() string {
	if k == SpanPhrase {
		return "phrase"
	}
	return "token"
}

// Span covers tokens [Start, End). Rule names the grammar rule that produced
// a phrase span and is empty for token spans.
type Span struct {
	Kind  SpanKind `json:"kind"`
	Start int      `json:"start"`
	End   int      `json:"end"`
	Rule  string   `json:"rule,omitempty"`
}

// Len returns the number of tokens in the span.
func (s Span) Len() int { return s.End - s.Start }

// ─────────────────────────────────────────────────────────────────────────────
// Grammar compilation
// ─────────────────────────────────────────────────────────────────────────────

type tagElem struct {
	re  *regexp.Regexp
	min int
	max int // -1 is unbounded
}

type compiledRule struct {
	name  string
	elems []tagElem
}

// Grammar is a compiled, ordered set of chunk rules. It holds no mutable state
// and is safe for concurrent use.
type Grammar struct {
	rules []compiledRule
}

// CompileGrammar compiles rules in priority order.
func CompileGrammar(rules []ChunkRule) (*Grammar, error) {
	if len(rules) == 0 {
		return nil, ErrInvalidGrammar.WithDetail("no rules")
	}
	g := &Grammar{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		elems, err := compileTagPattern(r.Pattern)
		if err != nil {
			return nil, ErrInvalidGrammar.WithDetail(fmt.Sprintf("rule %q: %v", r.Name, err))
		}
		g.rules = append(g.rules, compiledRule{name: r.Name, elems: elems})
	}
	return g, nil
}

// MustCompileGrammar is CompileGrammar for package-level grammars.
func MustCompileGrammar(rules []ChunkRule) *Grammar {
	g, err := CompileGrammar(rules)
	if err != nil {
		panic(err)
	}
	return g
}

var defaultGrammar = MustCompileGrammar(DefaultGrammar())

// RuleNames lists the compiled rule names in priority order.
func (g *Grammar) RuleNames() []string {
	names := make([]string, len(g.rules))
	for i, r := range g.rules {
		names[i] = r.name
	}
	return names
}

func compileTagPattern(pattern string) ([]tagElem, error) {
	var elems []tagElem
	p := strings.TrimSpace(pattern)
	if p == "" {
		return nil, fmt.Errorf("empty pattern")
	}
	for len(p) > 0 {
		if p[0] != '<' {
			return nil, fmt.Errorf("expected '<' at %q", p)
		}
		closeIdx := strings.IndexByte(p, '>')
		if closeIdx < 0 {
			return nil, fmt.Errorf("unterminated tag in %q", p)
		}
		body := p[1:closeIdx]
		if body == "" {
			return nil, fmt.Errorf("empty tag")
		}
		re, err := regexp.Compile(`^(?:` + body + `)$`)
		if err != nil {
			return nil, err
		}
		elem := tagElem{re: re, min: 1, max: 1}
		p = p[closeIdx+1:]
		if len(p) > 0 {
			switch p[0] {
			case '?':
				elem.min, elem.max = 0, 1
				p = p[1:]
			case '*':
				elem.min, elem.max = 0, -1
				p = p[1:]
			case '+':
				elem.min, elem.max = 1, -1
				p = p[1:]
			}
		}
		elems = append(elems, elem)
		p = strings.TrimLeft(p, " \t\n")
	}
	required := false
	for _, e := range elems {
		if e.min > 0 {
			required = true
			break
		}
	}
	if !required {
		return nil, fmt.Errorf("pattern can match zero tokens")
	}
	return elems, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Chunking
// ─────────────────────────────────────────────────────────────────────────────

// Chunk groups tagged tokens into spans. Rules run in priority order; a rule
// only sees tokens no earlier rule claimed and cannot match across a chunk.
// Within a run of free tokens the leftmost match wins and quantifiers are
// greedy. The returned spans cover every token exactly once, in order.
func (g *Grammar) Chunk(tokens []TaggedToken) []Span {
	n := len(tokens)
	if n == 0 {
		return nil
	}
	tags := make([]string, n)
	for i, t := range tokens {
		tags[i] = t.Tag
	}

	claimed := make([]bool, n)
	phraseEnd := make([]int, n)
	phraseRule := make([]string, n)

	for _, r := range g.rules {
		// limit is the end of the free run holding i. A match only claims
		// tokens before its own end, so the run end holds until i reaches it.
		i, limit := 0, 0
		for i < n {
			if claimed[i] {
				i++
				continue
			}
			if i >= limit {
				limit = i
				for limit < n && !claimed[limit] {
					limit++
				}
			}
			end, ok := matchElems(r.elems, tags, i, limit)
			if !ok || end == i {
				i++
				continue
			}
			for j := i; j < end; j++ {
				claimed[j] = true
			}
			phraseEnd[i] = end
			phraseRule[i] = r.name
			i = end
		}
	}

	spans := make([]Span, 0, n)
	for i := 0; i < n; {
		if phraseEnd[i] > 0 {
			spans = append(spans, Span{Kind: SpanPhrase, Start: i, End: phraseEnd[i], Rule: phraseRule[i]})
			i = phraseEnd[i]
			continue
		}
		spans = append(spans, Span{Kind: SpanToken, Start: i, End: i + 1})
		i++
	}
	return spans
}

// matchElems matches elems against tags[pos:limit], trying the longest
// repetition of each element first and backing off on failure.
func matchElems(elems []tagElem, tags []string, pos, limit int) (int, bool) {
	if len(elems) == 0 {
		return pos, true
	}
	e := elems[0]
	n := 0
	for pos+n < limit && (e.max < 0 || n < e.max) && e.re.MatchString(tags[pos+n]) {
		n++
	}
	for c := n; c >= e.min; c-- {
		if end, ok := matchElems(elems[1:], tags, pos+c, limit); ok {
			return end, true
		}
	}
	return 0, false
}
