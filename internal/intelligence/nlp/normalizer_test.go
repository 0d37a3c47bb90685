package nlp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ClaimLens/pkg/errors"
)

func TestFold(t *testing.T) {
	assert.Equal(t, "cafe naive", Fold("café naïve"))
	assert.Equal(t, "fi 2", Fold("ﬁ ²"))
	assert.Equal(t, "plain", Fold("plain"))
}

func TestReplacePatentNumbers(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"as in US 2015/0123456 A1 and", "as in PATENTNO and"},
		{"see EP1234567B1.", "see PATENTNO."},
		{"WO 2012/012345 describes", "PATENTNO describes"},
		{"U.S. Pat. No. 7,654,321 teaches", "PATENTNO teaches"},
		{"a US standard of 25 mm", "a US standard of 25 mm"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ReplacePatentNumbers(tt.in, DefaultPatentPlaceholder), tt.in)
	}
}

func TestNormalizer_Filter(t *testing.T) {
	n := NewNormalizer(nil)
	got := n.Filter([]string{"The", "heating", "elements", ",", "computer-implemented", "CPU", "PATENTNO", "42"})
	assert.Equal(t, []string{"heat", "element", "comput", "implement", "CPU", "PATENTNO", "42"}, got)
}

func TestNormalizer_FilterDropsStopwords(t *testing.T) {
	n := NewNormalizer(nil)
	assert.Equal(t, []string{"devic", "claim"}, n.Filter([]string{"the", "device", "of", "a", "claim"}))

	// Upper-case acronyms survive even when their lowercase form is a stopword.
	assert.Equal(t, []string{"IT", "depart"}, n.Filter([]string{"IT", "department"}))

	custom, err := NewVocabulary(DefaultLanguage, []string{"wherein", "said"})
	require.NoError(t, err)
	assert.Equal(t, []string{"the", "lever"}, NewNormalizer(custom).Filter([]string{"wherein", "said", "the", "lever"}))
}

func TestNormalizer_PrepareAndStopwords(t *testing.T) {
	n := NewNormalizer(DefaultVocabulary())
	assert.Equal(t, "the resume of PATENTNO", n.Prepare("the résumé of EP1234567"))
	assert.True(t, n.IsStopword("The"))
	assert.False(t, n.IsStopword("widget"))
	assert.Equal(t, "cool", n.Stem("cooling"))
	assert.Equal(t, "blank", n.Stem("blanks"))
}

func TestNormalizer_UnsupportedLanguageStemFallsBack(t *testing.T) {
	n := NewNormalizer(&Vocabulary{Language: "klingon", PatentPlaceholder: DefaultPatentPlaceholder})
	assert.Equal(t, "heating", n.Stem("Heating"))
}

func TestDefaultVocabulary(t *testing.T) {
	v := DefaultVocabulary()
	assert.Equal(t, DefaultLanguage, v.Language)
	assert.Equal(t, DefaultPatentPlaceholder, v.PatentPlaceholder)
	assert.Equal(t, 179, v.Len())
	assert.True(t, v.IsStopword("wouldn't"))
	assert.Contains(t, v.String(), "179 stopwords")
}

func TestNewVocabulary(t *testing.T) {
	v, err := NewVocabulary("", []string{" Said ", "", "wherein"})
	require.NoError(t, err)
	assert.Equal(t, []string{"said", "wherein"}, v.Stopwords())

	_, err = NewVocabulary("klingon", nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyInvalid))
}

func TestParseVocabulary(t *testing.T) {
	v, err := ParseVocabulary([]byte(`
language: English
stem_stopwords: true
patent_placeholder: PUBNO
stopwords: [wherein, said]
`))
	require.NoError(t, err)
	assert.Equal(t, "english", v.Language)
	assert.True(t, v.StemStopwords)
	assert.Equal(t, "PUBNO", v.PatentPlaceholder)
	assert.Equal(t, 2, v.Len())
	assert.False(t, v.IsStopword("the"))

	ext, err := ParseVocabulary([]byte("extend_default: true\nstopwords: [wherein]\n"))
	require.NoError(t, err)
	assert.Equal(t, 180, ext.Len())
	assert.True(t, ext.IsStopword("the"))

	_, err = ParseVocabulary([]byte("language: english\n"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyInvalid))

	_, err = ParseVocabulary([]byte("stopwords: [unclosed"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyInvalid))
}

func TestLoadVocabulary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stopwords: [thereof, therein]\n"), 0o600))

	v, err := LoadVocabulary(path)
	require.NoError(t, err)
	assert.True(t, v.IsStopword("Thereof"))

	_, err = LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeVocabularyInvalid))
}

func TestLoadVocabularyFromConfig(t *testing.T) {
	v, err := LoadVocabularyFromConfig(Config{})
	require.NoError(t, err)
	assert.Equal(t, 179, v.Len())

	v, err = LoadVocabularyFromConfig(Config{Language: "spanish", StemStopwords: true})
	require.NoError(t, err)
	assert.Equal(t, "spanish", v.Language)
	assert.True(t, v.StemStopwords)
	assert.Equal(t, 179, v.Len())

	_, err = LoadVocabularyFromConfig(Config{Language: "klingon"})
	assert.Error(t, err)
}
