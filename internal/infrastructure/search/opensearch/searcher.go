package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

// SearcherConfig bounds result sizes.
type SearcherConfig struct {
	DefaultPageSize int `mapstructure:"default_page_size" yaml:"default_page_size"`
	MaxPageSize     int `mapstructure:"max_page_size" yaml:"max_page_size"`
}

// Searcher runs phrase queries against the claim index.
type Searcher struct {
	client *Client
	index  string
	config SearcherConfig
	logger logging.Logger
}

func NewSearcher(client *Client, cfg SearcherConfig, logger logging.Logger) *Searcher {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 200
	}
	return &Searcher{
		client: client,
		index:  client.Index(),
		config: cfg,
		logger: logging.OrNop(logger),
	}
}

func (s *Searcher) pageSize(limit int) int {
	switch {
	case limit <= 0:
		return s.config.DefaultPageSize
	case limit > s.config.MaxPageSize:
		return s.config.MaxPageSize
	default:
		return limit
	}
}

// PhraseQuery matches phrase against claim text and extracted noun phrases.
// Noun-phrase matches are boosted.
func PhraseQuery(phrase string) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"should": []any{
				map[string]any{"match_phrase": map[string]any{"text": map[string]any{"query": phrase}}},
				map[string]any{"match_phrase": map[string]any{"phrases": map[string]any{"query": phrase, "boost": 2}}},
			},
			"minimum_should_match": 1,
		},
	}
}

// SearchPhrase returns up to limit claims containing phrase, best first.
func (s *Searcher) SearchPhrase(ctx context.Context, phrase string, limit int) ([]claim.SearchHit, error) {
	if phrase == "" {
		return nil, errors.InvalidParam("search phrase is required")
	}
	body, err := json.Marshal(map[string]any{
		"size":    s.pageSize(limit),
		"query":   PhraseQuery(phrase),
		"_source": []string{"id", "number", "category", "text"},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search query")
	}

	resp, err := s.client.api().Search(ctx, &opensearchapi.SearchReq{
		Indices: []string{s.index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		switch statusCode(resp) {
		case 0:
			return nil, errors.Wrap(err, errors.ErrCodeSearchError, "search request failed")
		case http.StatusNotFound:
			return nil, ErrIndexNotFound.WithDetail(s.index)
		default:
			return nil, responseError(err, "search failed")
		}
	}

	hits := make([]claim.SearchHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		var doc ClaimDocument
		if err := json.Unmarshal(h.Source, &doc); err != nil {
			s.logger.Warn("skipping hit with unreadable source", logging.String("doc_id", h.ID), logging.Err(err))
			continue
		}
		id, err := uuid.Parse(doc.ID)
		if err != nil {
			s.logger.Warn("skipping hit with invalid id", logging.String("doc_id", h.ID))
			continue
		}
		hits = append(hits, claim.SearchHit{
			ID:       id,
			Number:   doc.Number,
			Category: claim.Category(doc.Category),
			Text:     doc.Text,
			Score:    float64(h.Score),
		})
	}
	s.logger.Debug("phrase search",
		logging.String("phrase", phrase),
		logging.Int("total", resp.Hits.Total.Value),
		logging.Int("returned", len(hits)))
	return hits, nil
}

// Count returns the number of claims containing phrase.
func (s *Searcher) Count(ctx context.Context, phrase string) (int64, error) {
	body, err := json.Marshal(map[string]any{"query": PhraseQuery(phrase)})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal count query")
	}
	resp, err := s.client.api().Indices.Count(ctx, &opensearchapi.IndicesCountReq{
		Indices: []string{s.index},
		Body:    bytes.NewReader(body),
	})
	if err != nil {
		if statusCode(resp) == 0 {
			return 0, errors.Wrap(err, errors.ErrCodeSearchError, "count request failed")
		}
		return 0, responseError(err, "count failed")
	}
	return int64(resp.Count), nil
}

// ClaimIndex pairs an Indexer and a Searcher over the same index.
type ClaimIndex struct {
	*Indexer
	searcher *Searcher
}

func NewClaimIndex(client *Client, icfg IndexerConfig, scfg SearcherConfig, logger logging.Logger) *ClaimIndex {
	return &ClaimIndex{
		Indexer:  NewIndexer(client, icfg, logger),
		searcher: NewSearcher(client, scfg, logger),
	}
}

func (c *ClaimIndex) SearchPhrase(ctx context.Context, phrase string, limit int) ([]claim.SearchHit, error) {
	return c.searcher.SearchPhrase(ctx, phrase, limit)
}

func (c *ClaimIndex) Count(ctx context.Context, phrase string) (int64, error) {
	return c.searcher.Count(ctx, phrase)
}

var _ claim.SearchIndex = (*ClaimIndex)(nil)
