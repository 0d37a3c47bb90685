package nlp

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
)

// Publication numbers as they appear in claim text: "US 2015/0123456 A1",
// "EP1234567B1", "U.S. Pat. No. 7,654,321".
var patentNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:US|EP|WO|GB|CN|JP|DE|FR|KR|CA|AU)\s?-?\d{2,4}[/-]?\d{3,8}(?:\s?[ABCUTY]\d?)?\b`),
	regexp.MustCompile(`\b(?:U\.S\.\s)?(?:Pat\.|Patent)\s(?:No\.|Number)\s?\d{1,2},?\d{3},?\d{3}\b`),
}

// Normalizer implements claim.Normalizer with a Vocabulary and the snowball
// stemmer. It holds no mutable state.
type Normalizer struct {
	vocab *Vocabulary
}

var _ claim.Normalizer = (*Normalizer)(nil)

// NewNormalizer uses DefaultVocabulary when vocab is nil.
func NewNormalizer(vocab *Vocabulary) *Normalizer {
	if vocab == nil {
		vocab = DefaultVocabulary()
	}
	return &Normalizer{vocab: vocab}
}

// Vocabulary returns the normalizer's vocabulary.
func (n *Normalizer) Vocabulary() *Vocabulary { return n.vocab }

// Fold applies NFKC compatibility normalisation and strips combining marks.
func Fold(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return norm.NFKC.String(text)
	}
	return out
}

// ReplacePatentNumbers swaps publication numbers for placeholder.
func ReplacePatentNumbers(text, placeholder string) string {
	for _, p := range patentNumberPatterns {
		text = p.ReplaceAllString(text, placeholder)
	}
	return text
}

// Prepare folds the text and replaces patent numbers.
func (n *Normalizer) Prepare(text string) string {
	return ReplacePatentNumbers(Fold(text), n.vocab.PatentPlaceholder)
}

// Filter splits tokens on punctuation, lowercases everything except acronyms
// and the patent placeholder, drops stopwords, then stems lowercase words.
func (n *Normalizer) Filter(tokens []string) []string {
	return n.stemSplit(n.dropStopwords(n.capitalsProcess(punctuationSplit(tokens))))
}

// IsStopword reports whether w is a vocabulary stopword.
func (n *Normalizer) IsStopword(w string) bool { return n.vocab.IsStopword(w) }

// Stem returns the snowball stem of w, or w lowercased when the stemmer fails.
func (n *Normalizer) Stem(w string) string {
	stemmed, err := snowball.Stem(w, n.vocab.Language, n.vocab.StemStopwords)
	if err != nil {
		return strings.ToLower(w)
	}
	return stemmed
}

func isPunctOrSymbol(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

func punctuationSplit(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		for _, part := range strings.FieldsFunc(tok, isPunctOrSymbol) {
			out = append(out, part)
		}
	}
	return out
}

func (n *Normalizer) capitalsProcess(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if tok == n.vocab.PatentPlaceholder || isAcronym(tok) {
			out[i] = tok
			continue
		}
		out[i] = strings.ToLower(tok)
	}
	return out
}

// dropStopwords removes lowercased stopwords. Acronyms kept upper case by
// capitalsProcess ("IT", "US") are not stopwords.
func (n *Normalizer) dropStopwords(tokens []string) []string {
	out := tokens[:0]
	for _, tok := range tokens {
		if isLowerAlpha(tok) && n.vocab.IsStopword(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func (n *Normalizer) stemSplit(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		if isLowerAlpha(tok) {
			out[i] = n.Stem(tok)
			continue
		}
		out[i] = tok
	}
	return out
}

// isAcronym is true for two or more letters, all upper case.
func isAcronym(s string) bool {
	letters := 0
	for _, r := range s {
		if !unicode.IsLetter(r) || !unicode.IsUpper(r) {
			return false
		}
		letters++
	}
	return letters > 1
}

func isLowerAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) || unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
