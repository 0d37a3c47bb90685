package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v3/opensearchapi"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

const DefaultIndex = "claims"

var (
	ErrIndexAlreadyExists  = errors.New(errors.ErrCodeConflict, "index already exists")
	ErrIndexNotFound       = errors.New(errors.ErrCodeNotFound, "index not found")
	ErrDocumentIndexFailed = errors.New(errors.ErrCodeSearchError, "document index failed")
	ErrDocumentNotFound    = errors.New(errors.ErrCodeNotFound, "document not found")
)

// ClaimDocument is the indexed form of a claim record.
type ClaimDocument struct {
	ID         string    `json:"id"`
	SetID      string    `json:"set_id,omitempty"`
	Number     *int      `json:"number,omitempty"`
	Category   string    `json:"category"`
	Dependency int       `json:"dependency"`
	Text       string    `json:"text"`
	Phrases    []string  `json:"phrases"`
	Source     string    `json:"source,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewClaimDocument flattens r for indexing.
func NewClaimDocument(r *claim.Record) ClaimDocument {
	doc := ClaimDocument{
		ID:         r.ID.String(),
		Number:     r.Number,
		Category:   r.Category.String(),
		Dependency: r.Dependency,
		Text:       r.Text,
		Phrases:    make([]string, 0, len(r.Phrases)),
		Source:     r.Source,
		CreatedAt:  r.CreatedAt,
	}
	if r.SetID != nil {
		doc.SetID = r.SetID.String()
	}
	for _, p := range r.Phrases {
		doc.Phrases = append(doc.Phrases, p.Text)
	}
	return doc
}

// ClaimIndexMapping is the mapping EnsureIndex creates.
func ClaimIndexMapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 1,
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"id":         map[string]any{"type": "keyword"},
				"set_id":     map[string]any{"type": "keyword"},
				"number":     map[string]any{"type": "integer"},
				"category":   map[string]any{"type": "keyword"},
				"dependency": map[string]any{"type": "integer"},
				"text":       map[string]any{"type": "text", "analyzer": "english"},
				"phrases":    map[string]any{"type": "text", "analyzer": "english", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
				"source":     map[string]any{"type": "keyword"},
				"created_at": map[string]any{"type": "date"},
			},
		},
	}
}

// BulkResult summarizes a BulkIndex call.
type BulkResult struct {
	Succeeded int
	Failed    int
	Errors    []BulkItemError
}

type BulkItemError struct {
	DocID  string
	Type   string
	Reason string
}

// IndexerConfig holds configuration for the Indexer.
type IndexerConfig struct {
	BulkBatchSize int    `mapstructure:"bulk_batch_size" yaml:"bulk_batch_size"`
	RefreshPolicy string `mapstructure:"refresh_policy" yaml:"refresh_policy"`
}

// Indexer writes claim documents into the claim index.
type Indexer struct {
	client *Client
	index  string
	config IndexerConfig
	logger logging.Logger
}

func NewIndexer(client *Client, cfg IndexerConfig, logger logging.Logger) *Indexer {
	if cfg.BulkBatchSize <= 0 {
		cfg.BulkBatchSize = 500
	}
	if cfg.RefreshPolicy == "" {
		cfg.RefreshPolicy = "false"
	}
	return &Indexer{
		client: client,
		index:  client.Index(),
		config: cfg,
		logger: logging.OrNop(logger),
	}
}

// EnsureIndex creates the claim index when it is missing.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists, err := i.IndexExists(ctx)
	if err != nil || exists {
		return err
	}
	err = i.CreateIndex(ctx, ClaimIndexMapping())
	if errors.IsConflict(err) {
		return nil
	}
	return err
}

func (i *Indexer) CreateIndex(ctx context.Context, mapping map[string]any) error {
	body, err := json.Marshal(mapping)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal index mapping")
	}
	resp, err := i.client.api().Indices.Create(ctx, opensearchapi.IndicesCreateReq{
		Index: i.index,
		Body:  bytes.NewReader(body),
	})
	if err != nil {
		if status := statusCode(resp); status == 0 {
			return errors.Wrap(err, errors.ErrCodeSearchError, "create index request failed")
		}
		if strings.Contains(err.Error(), "resource_already_exists_exception") {
			return ErrIndexAlreadyExists.WithDetail(i.index)
		}
		return responseError(err, "create index failed")
	}
	i.logger.Info("index created", logging.String("index", i.index))
	return nil
}

func (i *Indexer) DeleteIndex(ctx context.Context) error {
	resp, err := i.client.api().Indices.Delete(ctx, opensearchapi.IndicesDeleteReq{Indices: []string{i.index}})
	if err != nil {
		switch statusCode(resp) {
		case 0:
			return errors.Wrap(err, errors.ErrCodeSearchError, "delete index request failed")
		case http.StatusNotFound:
			return ErrIndexNotFound.WithDetail(i.index)
		default:
			return responseError(err, "delete index failed")
		}
	}
	i.logger.Warn("index deleted", logging.String("index", i.index))
	return nil
}

func (i *Indexer) IndexExists(ctx context.Context) (bool, error) {
	resp, err := i.client.api().Indices.Exists(ctx, opensearchapi.IndicesExistsReq{Indices: []string{i.index}})
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if resp != nil && resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if err != nil {
		if resp == nil {
			return false, errors.Wrap(err, errors.ErrCodeSearchError, "index exists request failed")
		}
		return false, responseError(err, "index exists check failed")
	}
	return resp.StatusCode == http.StatusOK, nil
}

// Index writes one claim document keyed by the record ID.
func (i *Indexer) Index(ctx context.Context, r *claim.Record) error {
	body, err := json.Marshal(NewClaimDocument(r))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal claim document")
	}
	resp, err := i.client.api().Index(ctx, opensearchapi.IndexReq{
		Index:      i.index,
		DocumentID: r.ID.String(),
		Body:       bytes.NewReader(body),
		Params:     opensearchapi.IndexParams{Refresh: i.config.RefreshPolicy},
	})
	if err != nil {
		if statusCode(resp) == 0 {
			return errors.Wrap(err, errors.ErrCodeSearchError, "index request failed")
		}
		return ErrDocumentIndexFailed.WithDetail(err.Error())
	}
	return nil
}

// BulkIndex indexes records in batches of BulkBatchSize. Per-item failures
// are reported in the result; transport failures abort the call.
func (i *Indexer) BulkIndex(ctx context.Context, recs []*claim.Record) (*BulkResult, error) {
	result := &BulkResult{}
	for start := 0; start < len(recs); start += i.config.BulkBatchSize {
		end := start + i.config.BulkBatchSize
		if end > len(recs) {
			end = len(recs)
		}
		if err := i.bulkBatch(ctx, recs[start:end], result); err != nil {
			return result, err
		}
	}
	if len(recs) > 0 {
		i.logger.Info("bulk index completed",
			logging.Int("total", len(recs)),
			logging.Int("succeeded", result.Succeeded),
			logging.Int("failed", result.Failed))
	}
	return result, nil
}

func (i *Indexer) bulkBatch(ctx context.Context, batch []*claim.Record, result *BulkResult) error {
	var buf bytes.Buffer
	for _, r := range batch {
		doc, err := json.Marshal(NewClaimDocument(r))
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BulkItemError{DocID: r.ID.String(), Type: "serialization_error", Reason: err.Error()})
			continue
		}
		fmt.Fprintf(&buf, `{"index":{"_index":%q,"_id":%q}}`+"\n", i.index, r.ID.String())
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	if buf.Len() == 0 {
		return nil
	}

	resp, err := i.client.api().Bulk(ctx, opensearchapi.BulkReq{
		Body:   &buf,
		Params: opensearchapi.BulkParams{Refresh: i.config.RefreshPolicy},
	})
	if err != nil {
		if statusCode(resp) == 0 {
			return errors.Wrap(err, errors.ErrCodeSearchError, "bulk request failed")
		}
		result.Failed += len(batch)
		result.Errors = append(result.Errors, BulkItemError{DocID: "batch", Type: "http_error", Reason: err.Error()})
		return nil
	}

	for _, item := range resp.Items {
		for _, info := range item {
			if info.Status >= 200 && info.Status < 300 {
				result.Succeeded++
				continue
			}
			result.Failed++
			itemErr := BulkItemError{DocID: info.ID}
			if info.Error != nil {
				itemErr.Type, itemErr.Reason = info.Error.Type, info.Error.Reason
			}
			result.Errors = append(result.Errors, itemErr)
		}
	}
	return nil
}

func (i *Indexer) Delete(ctx context.Context, id uuid.UUID) error {
	resp, err := i.client.api().Document.Delete(ctx, opensearchapi.DocumentDeleteReq{
		Index:      i.index,
		DocumentID: id.String(),
		Params:     opensearchapi.DocumentDeleteParams{Refresh: i.config.RefreshPolicy},
	})
	if err != nil {
		switch statusCode(resp) {
		case 0:
			return errors.Wrap(err, errors.ErrCodeSearchError, "delete request failed")
		case http.StatusNotFound:
			return ErrDocumentNotFound.WithDetail(id.String())
		default:
			return responseError(err, "delete document failed")
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Error responses
// ─────────────────────────────────────────────────────────────────────────────

// inspectable is implemented by every typed opensearchapi response.
type inspectable interface {
	Inspect() opensearchapi.Inspect
}

// statusCode returns the HTTP status behind resp, or 0 when the request got
// no response.
func statusCode[R inspectable](resp R) int {
	var zero R
	if any(resp) == any(zero) {
		return 0
	}
	if in := resp.Inspect(); in.Response != nil {
		return in.Response.StatusCode
	}
	return 0
}

// responseError wraps a non-2xx reply. The client's error text carries the
// OpenSearch error type and reason.
func responseError(err error, msg string) error {
	return errors.New(errors.ErrCodeSearchError, msg).WithDetail(err.Error())
}
