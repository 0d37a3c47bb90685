package claim

import (
	"fmt"
	"regexp"
	"strings"
)

var fakeTokenPattern = regexp.MustCompile(`'s|\w+(?:-\w+)*|[^\w\s]`)

type fakeTokenizer struct {
	err error
}

func (f fakeTokenizer) Tokenize(text string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return fakeTokenPattern.FindAllString(text, -1), nil
}

// fakeLexicon tags "comprising" as VBN so the override is observable.
var fakeLexicon = map[string]string{
	"a": "DT", "an": "DT", "the": "DT", "each": "DT",
	"its": "PRP$", "their": "PRP$",
	"of": "IN", "for": "IN", "to": "TO", "in": "IN", "with": "IN", "by": "IN",
	"and": "CC", "or": "CC",
	"wherein": "WRB",
	"comprises": "VBZ", "is": "VBZ", "are": "VBP",
	"comprising": "VBN", "connected": "VBN",
	"heating": "VBG", "cooling": "VBG", "making": "VBG",
	"cold": "JJ", "outer": "JJ", "first": "JJ", "second": "JJ",
	"'s": "POS",
	",": ",", ":": ":", ";": ":", ".": ".",
}

type fakeTagger struct {
	err  error
	drop bool
}

func (f fakeTagger) Tag(tokens []string) ([]TaggedToken, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]TaggedToken, 0, len(tokens))
	for _, tok := range tokens {
		tag, ok := fakeLexicon[strings.ToLower(tok)]
		if !ok {
			tag = "NN"
			if isDigits(tok) {
				tag = "CD"
			}
		}
		out = append(out, TaggedToken{Word: tok, Tag: tag})
	}
	if f.drop && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

var fakeStopwords = map[string]bool{"a": true, "an": true, "the": true, "of": true, "and": true}

type fakeNormalizer struct{}

func (fakeNormalizer) Prepare(text string) string {
	return regexp.MustCompile(`US\d{7}`).ReplaceAllString(text, "PATENTNO")
}

func (fakeNormalizer) Filter(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if !isAlpha(t) || fakeStopwords[strings.ToLower(t)] {
			continue
		}
		out = append(out, strings.ToLower(t))
	}
	return out
}

func (fakeNormalizer) IsStopword(w string) bool { return fakeStopwords[strings.ToLower(w)] }

func (fakeNormalizer) Stem(w string) string {
	return strings.TrimSuffix(strings.TrimSuffix(w, "ing"), "s")
}

func tagged(pairs ...string) []TaggedToken {
	if len(pairs)%2 != 0 {
		panic(fmt.Sprintf("tagged: odd argument count %d", len(pairs)))
	}
	out := make([]TaggedToken, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, TaggedToken{Word: pairs[i], Tag: pairs[i+1]})
	}
	return out
}

func testOptions(extra ...Option) []Option {
	return append([]Option{WithTokenizer(fakeTokenizer{}), WithTagger(fakeTagger{})}, extra...)
}
