// Package worker turns Kafka events into annotation service calls.
package worker

import (
	"context"
	"time"

	"github.com/turtacn/ClaimLens/internal/application/annotation"
	"github.com/turtacn/ClaimLens/internal/domain/claim"
	"github.com/turtacn/ClaimLens/internal/infrastructure/database/redis"
	"github.com/turtacn/ClaimLens/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/ClaimLens/pkg/errors"
	"github.com/turtacn/ClaimLens/pkg/types/common"
)

// DefaultHandlerTimeout bounds one Handle call.
const DefaultHandlerTimeout = 2 * time.Minute

// Handler processes the messages of one topic.
type Handler interface {
	Topic() string
	Handle(ctx context.Context, msg *common.Message) error
}

// Subscriber is the part of kafka.Consumer handlers are registered with.
type Subscriber interface {
	Subscribe(topic string, handler common.MessageHandler) error
}

// Annotator is the part of annotation.Service the worker calls.
type Annotator interface {
	Annotate(ctx context.Context, in annotation.Input) (*annotation.Result, error)
}

// LockFunc acquires a named lock without waiting and returns its release
// function.
type LockFunc func(ctx context.Context, name string) (unlock func(context.Context) error, err error)

// RedisLock adapts a redis.Locker.
func RedisLock(l *redis.Locker) LockFunc {
	return func(ctx context.Context, name string) (func(context.Context) error, error) {
		lk, err := l.TryLock(ctx, name)
		if err != nil {
			return nil, err
		}
		return lk.Unlock, nil
	}
}

// Register subscribes every handler to its topic, wrapping it with the
// per-message timeout and message metrics.
func Register(sub Subscriber, metrics *prometheus.ClaimMetrics, timeout time.Duration, handlers ...Handler) error {
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	for _, h := range handlers {
		h := h
		topic := h.Topic()
		err := sub.Subscribe(topic, func(ctx context.Context, msg *common.Message) error {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			err := h.Handle(ctx, msg)
			prometheus.RecordMessage(metrics, topic, err, time.Since(start))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// claim.submitted
// ─────────────────────────────────────────────────────────────────────────────

// ClaimSubmittedHandler annotates claims submitted on the claim.submitted
// topic. The service publishes claim.annotated itself once the record is
// stored.
type ClaimSubmittedHandler struct {
	svc    Annotator
	lock   LockFunc
	logger logging.Logger
}

type HandlerOption func(*ClaimSubmittedHandler)

// WithLock serializes work on equal submissions across workers. A submission
// whose lock is held elsewhere fails with a retryable error; the retry then
// finds the stored annotation.
func WithLock(fn LockFunc) HandlerOption {
	return func(h *ClaimSubmittedHandler) { h.lock = fn }
}

func NewClaimSubmittedHandler(svc Annotator, logger logging.Logger, opts ...HandlerOption) *ClaimSubmittedHandler {
	h := &ClaimSubmittedHandler{svc: svc, logger: logging.OrNop(logger).Named("claim_submitted")}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ClaimSubmittedHandler) Topic() string { return kafka.TopicClaimSubmitted }

// Handle decodes the event and annotates its claim. Undecodable events and
// claims the parser rejects are permanent failures; store errors are
// returned as is so the consumer retries them.
func (h *ClaimSubmittedHandler) Handle(ctx context.Context, msg *common.Message) error {
	env, err := kafka.MessageToEventEnvelope(msg)
	if err != nil {
		return kafka.Permanent(err)
	}
	if env.EventType != kafka.EventClaimSubmitted {
		h.logger.Warn("skipping unexpected event type",
			logging.String("event_type", env.EventType),
			logging.String("event_id", env.EventID))
		return nil
	}
	var payload kafka.ClaimSubmittedPayload
	if err := env.DecodePayload(&payload); err != nil {
		return kafka.Permanent(err)
	}

	traceID := env.TraceID
	if traceID == "" {
		traceID = env.EventID
	}
	ctx = common.WithRequestID(ctx, traceID)

	if h.lock != nil {
		unlock, err := h.lock(ctx, claim.Fingerprint(payload.Text, payload.Number, payload.Dependency))
		if err != nil {
			return err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				h.logger.Warn("release claim lock", logging.Err(err))
			}
		}()
	}

	res, err := h.svc.Annotate(ctx, annotation.Input{
		Text:       payload.Text,
		Number:     payload.Number,
		Dependency: payload.Dependency,
		Source:     payload.Source,
	})
	if err != nil {
		if isRejected(err) {
			h.logger.Warn("claim rejected",
				logging.String("event_id", env.EventID),
				logging.Err(err))
			return kafka.Permanent(err)
		}
		return err
	}

	h.logger.Info("claim submission processed",
		logging.String("event_id", env.EventID),
		logging.String("trace_id", traceID),
		logging.String("claim_id", res.Record.ID.String()),
		logging.Bool("cached", res.Cached),
		logging.Int("warnings", len(res.Warnings)))
	return nil
}

// isRejected reports errors caused by the submission itself.
func isRejected(err error) bool {
	switch errors.GetCode(err) {
	case errors.ErrCodeClaimTextEmpty,
		errors.ErrCodeClaimOverrideInvalid,
		errors.ErrCodeBadRequest,
		errors.ErrCodeValidation:
		return true
	}
	return false
}
