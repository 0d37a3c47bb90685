package nlp

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/turtacn/ClaimLens/pkg/errors"
)

// DefaultLanguage is the snowball stemmer language used when none is configured.
const DefaultLanguage = "english"

// DefaultPatentPlaceholder replaces patent publication numbers in filtered text.
const DefaultPatentPlaceholder = "PATENTNO"

var supportedLanguages = map[string]bool{
	"english":   true,
	"french":    true,
	"norwegian": true,
	"russian":   true,
	"spanish":   true,
	"swedish":   true,
}

// englishStopwords is the common English function-word list.
var englishStopwords = []string{
	"i", "me", "my", "myself", "we", "our", "ours", "ourselves", "you", "you're",
	"you've", "you'll", "you'd", "your", "yours", "yourself", "yourselves", "he",
	"him", "his", "himself", "she", "she's", "her", "hers", "herself", "it", "it's",
	"its", "itself", "they", "them", "their", "theirs", "themselves", "what",
	"which", "who", "whom", "this", "that", "that'll", "these", "those", "am", "is",
	"are", "was", "were", "be", "been", "being", "have", "has", "had", "having",
	"do", "does", "did", "doing", "a", "an", "the", "and", "but", "if", "or",
	"because", "as", "until", "while", "of", "at", "by", "for", "with", "about",
	"against", "between", "into", "through", "during", "before", "after", "above",
	"below", "to", "from", "up", "down", "in", "out", "on", "off", "over", "under",
	"again", "further", "then", "once", "here", "there", "when", "where", "why",
	"how", "all", "any", "both", "each", "few", "more", "most", "other", "some",
	"such", "no", "nor", "not", "only", "own", "same", "so", "than", "too", "very",
	"s", "t", "can", "will", "just", "don", "don't", "should", "should've", "now",
	"d", "ll", "m", "o", "re", "ve", "y", "ain", "aren", "aren't", "couldn",
	"couldn't", "didn", "didn't", "doesn", "doesn't", "hadn", "hadn't", "hasn",
	"hasn't", "haven", "haven't", "isn", "isn't", "ma", "mightn", "mightn't",
	"mustn", "mustn't", "needn", "needn't", "shan", "shan't", "shouldn",
	"shouldn't", "wasn", "wasn't", "weren", "weren't", "won", "won't", "wouldn",
	"wouldn't",
}

// Vocabulary is the injected word-level configuration of a Normalizer.
type Vocabulary struct {
	Language          string
	StemStopwords     bool
	PatentPlaceholder string
	stopwords         map[string]struct{}
}

// vocabularyFile is the YAML layout read by LoadVocabulary.
//
//	language: english
//	stem_stopwords: false
//	extend_default: true
//	patent_placeholder: PATENTNO
//	stopwords: [wherein, thereof, said]
type vocabularyFile struct {
	Language          string   `yaml:"language"`
	StemStopwords     bool     `yaml:"stem_stopwords"`
	ExtendDefault     bool     `yaml:"extend_default"`
	PatentPlaceholder string   `yaml:"patent_placeholder"`
	Stopwords         []string `yaml:"stopwords"`
}

// NewVocabulary builds a vocabulary from explicit stopwords.
func NewVocabulary(language string, stopwords []string) (*Vocabulary, error) {
	if language == "" {
		language = DefaultLanguage
	}
	language = strings.ToLower(language)
	if !supportedLanguages[language] {
		return nil, errors.New(errors.ErrCodeVocabularyInvalid, "unsupported stemming language").
			WithDetail("language=" + language)
	}
	v := &Vocabulary{
		Language:          language,
		PatentPlaceholder: DefaultPatentPlaceholder,
		stopwords:         make(map[string]struct{}, len(stopwords)),
	}
	for _, w := range stopwords {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			v.stopwords[w] = struct{}{}
		}
	}
	return v, nil
}

// DefaultVocabulary returns the English vocabulary.
func DefaultVocabulary() *Vocabulary {
	v, _ := NewVocabulary(DefaultLanguage, englishStopwords)
	return v
}

// LoadVocabulary reads a vocabulary from a YAML file. With extend_default the
// listed stopwords are added to the English list instead of replacing it.
func LoadVocabulary(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabularyInvalid, "read vocabulary file").WithDetail("path=" + path)
	}
	return ParseVocabulary(data)
}

// ParseVocabulary decodes the YAML vocabulary layout.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var f vocabularyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeVocabularyInvalid, "decode vocabulary")
	}
	words := f.Stopwords
	if f.ExtendDefault {
		words = append(append([]string(nil), englishStopwords...), f.Stopwords...)
	}
	if len(words) == 0 {
		return nil, errors.New(errors.ErrCodeVocabularyInvalid, "vocabulary defines no stopwords")
	}
	v, err := NewVocabulary(f.Language, words)
	if err != nil {
		return nil, err
	}
	v.StemStopwords = f.StemStopwords
	if f.PatentPlaceholder != "" {
		v.PatentPlaceholder = f.PatentPlaceholder
	}
	return v, nil
}

// IsStopword reports whether w (any case) is a stopword.
func (v *Vocabulary) IsStopword(w string) bool {
	_, ok := v.stopwords[strings.ToLower(w)]
	return ok
}

// Len returns the number of stopwords.
func (v *Vocabulary) Len() int { return len(v.stopwords) }

// Stopwords returns the stopwords sorted alphabetically.
func (v *Vocabulary) Stopwords() []string {
	out := make([]string, 0, len(v.stopwords))
	for w := range v.stopwords {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

func (v *Vocabulary) String() string {
	return fmt.Sprintf("Vocabulary(%s, %d stopwords)", v.Language, len(v.stopwords))
}
