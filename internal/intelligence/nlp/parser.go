package nlp

import (
	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
)

// Config selects the vocabulary and grammar behind NewClaimParser.
type Config struct {
	// StopwordsFile is a YAML vocabulary; empty uses the built-in English list.
	StopwordsFile string `mapstructure:"stopwords_file" yaml:"stopwords_file"`
	// Language overrides the vocabulary's stemming language.
	Language      string `mapstructure:"language" yaml:"language"`
	StemStopwords bool   `mapstructure:"stem_stopwords" yaml:"stem_stopwords"`
	// Grammar replaces the default noun-phrase grammar when non-empty.
	Grammar []claim.ChunkRule `mapstructure:"grammar" yaml:"grammar"`
}

// LoadVocabularyFromConfig resolves the vocabulary described by cfg.
func LoadVocabularyFromConfig(cfg Config) (*Vocabulary, error) {
	var (
		vocab *Vocabulary
		err   error
	)
	if cfg.StopwordsFile != "" {
		if vocab, err = LoadVocabulary(cfg.StopwordsFile); err != nil {
			return nil, err
		}
	} else {
		vocab = DefaultVocabulary()
	}
	if cfg.Language != "" && cfg.Language != vocab.Language {
		relang, err := NewVocabulary(cfg.Language, vocab.Stopwords())
		if err != nil {
			return nil, err
		}
		relang.PatentPlaceholder = vocab.PatentPlaceholder
		vocab = relang
	}
	if cfg.StemStopwords {
		vocab.StemStopwords = true
	}
	return vocab, nil
}

// NewClaimParser wires the prose tokenizer and tagger, the normalizer and the
// configured grammar into a claim.Parser.
func NewClaimParser(cfg Config, logger logging.Logger) (*claim.Parser, error) {
	vocab, err := LoadVocabularyFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	logger = logging.OrNop(logger)

	opts := []claim.Option{
		claim.WithNormalizer(NewNormalizer(vocab)),
		claim.WithLogger(logger.Named("claim")),
	}
	if len(cfg.Grammar) > 0 {
		opts = append(opts, claim.WithGrammar(cfg.Grammar))
	}

	tagger := NewPerceptronTagger()
	p, err := claim.NewParser(NewProseTokenizer(), tagger, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("claim parser ready",
		logging.String("language", vocab.Language),
		logging.Int("stopwords", vocab.Len()),
		logging.Int("grammar_rules", len(cfg.Grammar)))
	return p, nil
}
