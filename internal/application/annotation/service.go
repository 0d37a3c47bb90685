// Package annotation orchestrates claim parsing and the stores an annotated
// claim is written to: the claim repository, the dependency graph, the search
// index, the view archive, the annotation cache and the event stream.
package annotation

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ClaimLens/pkg/errors"
	"github.com/turtacn/ClaimLens/pkg/types/common"
)

var (
	ErrEmptyText      = errors.New(errors.ErrCodeClaimTextEmpty, "claim text is empty")
	ErrSearchDisabled = errors.New(errors.ErrCodeNotImplemented, "phrase search is not configured")
	ErrGraphDisabled  = errors.New(errors.ErrCodeNotImplemented, "claim graph is not configured")
	ErrNoRepository   = errors.New(errors.ErrCodeInternal, "claim repository is required")
	ErrNoParser       = errors.New(errors.ErrCodeInternal, "claim parser is required")
)

// Sink names used in warnings and the sink failure metric.
const (
	SinkGraph   = "graph"
	SinkIndex   = "index"
	SinkArchive = "archive"
	SinkCache   = "cache"
	SinkEvents  = "events"
)

const (
	DefaultWorkers     = 4
	DefaultSource      = "api"
	DefaultSearchLimit = 20
	eventSource        = "claimlens"
)

// Service is the application entry point for annotating claims.
type Service interface {
	Annotate(ctx context.Context, in Input) (*Result, error)
	AnnotateSet(ctx context.Context, in SetInput) (*SetResult, error)
	Get(ctx context.Context, id uuid.UUID) (*claim.Record, error)
	View(ctx context.Context, id uuid.UUID) (*claim.View, error)
	SearchPhrase(ctx context.Context, phrase string, limit int) ([]claim.SearchHit, error)
	Mentioning(ctx context.Context, phrase string, limit int) ([]uuid.UUID, error)
	Dependents(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

// Input is one claim to annotate. Number and Dependency, when set, override
// what the parser reads from the text.
type Input struct {
	Text       string `json:"text"`
	Number     *int   `json:"number,omitempty"`
	Dependency *int   `json:"dependency,omitempty"`
	Source     string `json:"source,omitempty"`
}

// Result is an annotated claim. Warnings name the optional stores that
// failed; the record itself has been persisted.
type Result struct {
	Record     *claim.Record `json:"record"`
	View       claim.View    `json:"view"`
	Cached     bool          `json:"cached"`
	ArchiveKey string        `json:"archive_key,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
}

// SetInput is a claims block to split, or the already split claims.
type SetInput struct {
	Text   string   `json:"text,omitempty"`
	Claims []string `json:"claims,omitempty"`
	Source string   `json:"source,omitempty"`
}

type SetResult struct {
	SetID       uuid.UUID             `json:"set_id"`
	Records     []*claim.Record       `json:"records"`
	Tree        *claim.DependencyTree `json:"tree"`
	Links       int                   `json:"links"`
	WordCount   int                   `json:"word_count"`
	ReadingTime float64               `json:"reading_time_minutes"`
	ArchiveKey  string                `json:"archive_key,omitempty"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// Cache is the read-through annotation cache keyed by claim fingerprint.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}) error
}

// EventPublisher publishes annotation events.
type EventPublisher interface {
	Publish(ctx context.Context, msg *common.ProducerMessage) error
}

type Config struct {
	Workers int    `mapstructure:"workers" yaml:"workers"`
	Source  string `mapstructure:"default_source" yaml:"default_source"`
}

// Deps are the service's collaborators. Parser and Repository are required;
// every other store may be nil.
type Deps struct {
	Parser     *claim.Parser
	Repository claim.Repository
	Graph      claim.GraphRepository
	Index      claim.SearchIndex
	Archive    claim.Archive
	Cache      Cache
	Events     EventPublisher
	Metrics    *prometheus.ClaimMetrics
	Logger     logging.Logger
}

type serviceImpl struct {
	parser  *claim.Parser
	repo    claim.Repository
	graph   claim.GraphRepository
	index   claim.SearchIndex
	archive claim.Archive
	cache   Cache
	events  EventPublisher
	metrics *prometheus.ClaimMetrics
	logger  logging.Logger
	cfg     Config

	// flight coalesces concurrent annotations of the same fingerprint.
	flight singleflight.Group
}

func NewService(cfg Config, deps Deps) (Service, error) {
	if deps.Parser == nil {
		return nil, ErrNoParser
	}
	if deps.Repository == nil {
		return nil, ErrNoRepository
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	return &serviceImpl{
		parser:  deps.Parser,
		repo:    deps.Repository,
		graph:   deps.Graph,
		index:   deps.Index,
		archive: deps.Archive,
		cache:   deps.Cache,
		events:  deps.Events,
		metrics: deps.Metrics,
		logger:  logging.OrNop(deps.Logger).Named("annotation"),
		cfg:     cfg,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Single claim
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Annotate(ctx context.Context, in Input) (*Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, ErrEmptyText
	}
	source := in.Source
	if source == "" {
		source = s.cfg.Source
	}
	key := claim.Fingerprint(in.Text, in.Number, in.Dependency)

	leader := false
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		leader = true
		return s.annotate(ctx, in, source, key)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*Result)
	if leader {
		return res, nil
	}
	// Callers that joined an in-flight annotation get their own copy and see
	// it as an earlier result.
	shared := *res
	shared.Cached = true
	shared.Warnings = append([]string(nil), res.Warnings...)
	return &shared, nil
}

// annotate runs a cache and repository lookup, then parses and stores the
// claim. Annotate calls it at most once per fingerprint at a time.
func (s *serviceImpl) annotate(ctx context.Context, in Input, source, key string) (*Result, error) {
	if rec := s.lookup(ctx, key); rec != nil {
		return &Result{Record: rec, View: rec.View(), Cached: true}, nil
	}

	start := time.Now()
	c, err := s.parser.Parse(in.Text, overrides(in.Number, in.Dependency)...)
	if err != nil {
		prometheus.RecordParseError(s.metrics, errors.GetCode(err).String())
		return nil, err
	}
	rec := claim.NewRecord(c, source, in.Number, in.Dependency)
	prometheus.RecordClaimParsed(s.metrics, rec.Category.String(), rec.Dependency,
		len(rec.Phrases), len(rec.Features), time.Since(start))

	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}

	res := &Result{Record: rec, View: rec.View()}
	if s.graph != nil {
		res.warn(s.sinkFailed(SinkGraph, s.graph.UpsertClaim(ctx, rec)))
	}
	if s.index != nil {
		res.warn(s.sinkFailed(SinkIndex, s.index.Index(ctx, rec)))
	}
	if s.archive != nil {
		archiveKey, err := s.archive.Put(ctx, rec)
		res.ArchiveKey = archiveKey
		res.warn(s.sinkFailed(SinkArchive, err))
	}
	if s.cache != nil {
		res.warn(s.sinkFailed(SinkCache, s.cache.Set(ctx, key, rec)))
	}
	res.warn(s.sinkFailed(SinkEvents, s.publish(ctx, rec)))

	s.logger.Info("claim annotated",
		logging.String("claim_id", rec.ID.String()),
		logging.String("category", rec.Category.String()),
		logging.Int("dependency", rec.Dependency),
		logging.Int("noun_phrases", len(rec.Phrases)),
		logging.Int("warnings", len(res.Warnings)))
	return res, nil
}

// lookup checks the cache, then the repository, for an earlier annotation of
// the same text and overrides. Lookup failures only cost a re-parse.
func (s *serviceImpl) lookup(ctx context.Context, key string) *claim.Record {
	if s.cache != nil {
		var rec claim.Record
		err := s.cache.Get(ctx, key, &rec)
		if err == nil {
			return &rec
		}
		if !errors.IsNotFound(err) {
			s.logger.Warn("annotation cache read failed", logging.Err(err))
		}
	}

	rec, err := s.repo.FindByHash(ctx, key)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.logger.Warn("claim lookup by hash failed", logging.Err(err))
		}
		return nil
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rec); err != nil {
			s.logger.Warn("annotation cache write failed", logging.Err(err))
		}
	}
	return rec
}

func overrides(number, dependency *int) []claim.Option {
	var opts []claim.Option
	if number != nil {
		opts = append(opts, claim.WithNumber(*number))
	}
	if dependency != nil {
		opts = append(opts, claim.WithDependency(*dependency))
	}
	return opts
}

func (r *Result) warn(w string) {
	if w != "" {
		r.Warnings = append(r.Warnings, w)
	}
}

// sinkFailed logs and counts a failed write to an optional store and returns
// the warning text, or "" when err is nil.
func (s *serviceImpl) sinkFailed(sink string, err error) string {
	if err == nil {
		return ""
	}
	prometheus.RecordSinkFailure(s.metrics, sink)
	s.logger.Warn("optional store write failed", logging.String("sink", sink), logging.Err(err))
	return sink + ": " + err.Error()
}

func (s *serviceImpl) publish(ctx context.Context, rec *claim.Record) error {
	if s.events == nil {
		return nil
	}
	payload := kafka.ClaimAnnotatedPayload{
		ClaimID:     rec.ID.String(),
		Number:      rec.Number,
		Category:    rec.Category.String(),
		Dependency:  rec.Dependency,
		NounPhrases: len(rec.Phrases),
		TextHash:    rec.TextHash,
		Source:      rec.Source,
		AnnotatedAt: rec.CreatedAt,
	}
	if rec.SetID != nil {
		payload.SetID = rec.SetID.String()
	}
	env, err := kafka.NewEventEnvelope(kafka.EventClaimAnnotated, eventSource, payload)
	if err != nil {
		return err
	}
	env.TraceID = common.RequestIDFrom(ctx)
	msg, err := env.ToMessage(kafka.TopicClaimAnnotated, []byte(rec.ID.String()))
	if err != nil {
		return err
	}
	return s.events.Publish(ctx, msg)
}

// ─────────────────────────────────────────────────────────────────────────────
// Claim sets
// ─────────────────────────────────────────────────────────────────────────────

// AnnotateSet parses every claim of a set concurrently, then stores the set.
// Any parse failure fails the whole set. Records are saved atomically when
// the repository supports it.
func (s *serviceImpl) AnnotateSet(ctx context.Context, in SetInput) (*SetResult, error) {
	texts := in.Claims
	if len(texts) == 0 {
		texts = claim.SplitClaims(in.Text)
	}
	if len(texts) == 0 {
		return nil, ErrEmptyText
	}
	source := in.Source
	if source == "" {
		source = s.cfg.Source
	}

	claims := make([]*claim.Claim, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i, text := range texts {
		i, text := i, text
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if strings.TrimSpace(text) == "" {
				return ErrEmptyText.WithDetail("claim at position " + strconv.Itoa(i+1))
			}
			c, err := s.parser.Parse(text)
			if err != nil {
				prometheus.RecordParseError(s.metrics, errors.GetCode(err).String())
				return err
			}
			claims[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	set := claim.NewClaimset(claims...)
	setID := uuid.New()
	recs := make([]*claim.Record, len(claims))
	for i, c := range claims {
		rec := claim.NewRecord(c, source, nil, nil)
		rec.SetID = &setID
		recs[i] = rec
	}
	prometheus.RecordClaimset(s.metrics, source, len(recs))

	if err := s.saveAll(ctx, recs); err != nil {
		return nil, err
	}

	res := &SetResult{
		SetID:       setID,
		Records:     recs,
		Tree:        set.DependencyTree(),
		WordCount:   set.WordCount(),
		ReadingTime: set.ReadingTime(claim.DefaultReadingRate),
	}
	var warnings []string
	if s.graph != nil {
		warnings = append(warnings, s.projectSet(ctx, setID, recs, res)...)
	}
	for _, rec := range recs {
		if s.index != nil {
			if w := s.sinkFailed(SinkIndex, s.index.Index(ctx, rec)); w != "" {
				warnings = append(warnings, w)
			}
		}
		if w := s.sinkFailed(SinkEvents, s.publish(ctx, rec)); w != "" {
			warnings = append(warnings, w)
		}
	}
	if sa, ok := s.archive.(claim.SetArchive); ok {
		key, err := sa.PutSet(ctx, setID, recs)
		res.ArchiveKey = key
		if w := s.sinkFailed(SinkArchive, err); w != "" {
			warnings = append(warnings, w)
		}
	}
	res.Warnings = warnings

	s.logger.Info("claimset annotated",
		logging.String("set_id", setID.String()),
		logging.Int("claims", len(recs)),
		logging.Int("depth", res.Tree.Depth),
		logging.Int("warnings", len(warnings)))
	return res, nil
}

func (s *serviceImpl) saveAll(ctx context.Context, recs []*claim.Record) error {
	if batch, ok := s.repo.(claim.BatchRepository); ok {
		return batch.SaveAll(ctx, recs)
	}
	for _, rec := range recs {
		if err := s.repo.Save(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// projectSet writes every claim node before linking, so dependency edges
// find both ends.
func (s *serviceImpl) projectSet(ctx context.Context, setID uuid.UUID, recs []*claim.Record, res *SetResult) []string {
	var warnings []string
	for _, rec := range recs {
		if w := s.sinkFailed(SinkGraph, s.graph.UpsertClaim(ctx, rec)); w != "" {
			warnings = append(warnings, w)
		}
	}
	links, err := s.graph.LinkDependencies(ctx, setID)
	if w := s.sinkFailed(SinkGraph, err); w != "" {
		return append(warnings, w)
	}
	res.Links = links
	return warnings
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Get(ctx context.Context, id uuid.UUID) (*claim.Record, error) {
	return s.repo.FindByID(ctx, id)
}

// View serves the archived view document, falling back to the stored record
// when the archive is absent or misses.
func (s *serviceImpl) View(ctx context.Context, id uuid.UUID) (*claim.View, error) {
	if s.archive != nil {
		v, err := s.archive.Get(ctx, id)
		if err == nil {
			return v, nil
		}
		if !errors.IsNotFound(err) {
			s.logger.Warn("archive read failed", logging.String("claim_id", id.String()), logging.Err(err))
		}
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	v := rec.View()
	return &v, nil
}

func (s *serviceImpl) SearchPhrase(ctx context.Context, phrase string, limit int) ([]claim.SearchHit, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, errors.InvalidParam("search phrase is required")
	}
	if s.index == nil {
		return nil, ErrSearchDisabled
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	return s.index.SearchPhrase(ctx, phrase, limit)
}

func (s *serviceImpl) Mentioning(ctx context.Context, phrase string, limit int) ([]uuid.UUID, error) {
	phrase = strings.TrimSpace(phrase)
	if phrase == "" {
		return nil, errors.InvalidParam("noun phrase is required")
	}
	if s.graph == nil {
		return nil, ErrGraphDisabled
	}
	return s.graph.FindClaimsMentioning(ctx, phrase, limit)
}

func (s *serviceImpl) Dependents(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	if s.graph == nil {
		return nil, ErrGraphDisabled
	}
	return s.graph.FindDependents(ctx, id)
}
