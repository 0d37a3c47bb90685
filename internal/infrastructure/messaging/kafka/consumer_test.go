package kafka

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ClaimLens/pkg/errors"
	"github.com/turtacn/ClaimLens/pkg/types/common"
)

// queueReader serves queued messages, then blocks until ctx is done.
type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *queueReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *queueReader) Stats() kafka.ReaderStats { return kafka.ReaderStats{} }

func (r *queueReader) commitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []*common.ProducerMessage
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, msg *common.ProducerMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers: []string{"localhost:9092"},
		GroupID: "claimlens-worker",
		Topics:  []string{TopicClaimSubmitted},
		Retry: RetryConfig{
			MaxRetries:      2,
			RetryBackoff:    time.Millisecond,
			MaxRetryBackoff: 2 * time.Millisecond,
			DeadLetterTopic: TopicDeadLetterClaim,
		},
	}
}

func TestValidateConsumerConfig(t *testing.T) {
	assert.NoError(t, ValidateConsumerConfig(testConsumerConfig()))

	cfg := testConsumerConfig()
	cfg.Brokers = nil
	assert.True(t, errors.IsValidation(ValidateConsumerConfig(cfg)))

	cfg = testConsumerConfig()
	cfg.GroupID = ""
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testConsumerConfig()
	cfg.AutoOffsetReset = "newest"
	assert.Error(t, ValidateConsumerConfig(cfg))

	cfg = testConsumerConfig()
	cfg.Retry.MaxRetries = -1
	assert.Error(t, ValidateConsumerConfig(cfg))
}

func TestConsumerDefaults(t *testing.T) {
	c := newConsumerWithReader(&queueReader{}, nil, ConsumerConfig{Brokers: []string{"b"}, GroupID: "g"}, nil)
	assert.Equal(t, "earliest", c.config.AutoOffsetReset)
	assert.Equal(t, 3, c.config.Retry.MaxRetries)
	assert.Equal(t, time.Second, c.config.Retry.RetryBackoff)
	assert.Equal(t, 30*time.Second, c.config.Retry.MaxRetryBackoff)
}

func TestStart_RequiresHandlers(t *testing.T) {
	c := newConsumerWithReader(&queueReader{}, nil, testConsumerConfig(), nil)
	assert.ErrorIs(t, c.Start(context.Background()), ErrNoHandlers)
}

func TestStart_AlreadyRunning(t *testing.T) {
	c := newConsumerWithReader(&queueReader{}, nil, testConsumerConfig(), nil)
	require.NoError(t, c.Subscribe(TopicClaimSubmitted, func(context.Context, *common.Message) error { return nil }))
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.ErrorIs(t, c.Start(context.Background()), ErrAlreadyRunning)
}

func TestSubscribe_Validation(t *testing.T) {
	c := newConsumerWithReader(&queueReader{}, nil, testConsumerConfig(), nil)
	assert.Error(t, c.Subscribe("", func(context.Context, *common.Message) error { return nil }))
	assert.Error(t, c.Subscribe("t", nil))
}

func TestConsumeLoop_DispatchesAndCommits(t *testing.T) {
	reader := &queueReader{queue: []kafka.Message{
		{Topic: TopicClaimSubmitted, Offset: 4, HighWaterMark: 10, Key: []byte("k"), Value: []byte("v"),
			Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(EventClaimSubmitted)}}},
		{Topic: "unrelated", Offset: 5, Value: []byte("x")},
	}}
	c := newConsumerWithReader(reader, nil, testConsumerConfig(), nil)

	got := make(chan *common.Message, 1)
	require.NoError(t, c.Subscribe(TopicClaimSubmitted, func(_ context.Context, msg *common.Message) error {
		got <- msg
		return nil
	}))
	require.NoError(t, c.Start(context.Background()))

	select {
	case msg := <-got:
		assert.Equal(t, "v", string(msg.Value))
		assert.Equal(t, int64(4), msg.Offset)
		assert.Equal(t, EventClaimSubmitted, msg.Headers[HeaderEventType])
	case <-time.After(time.Second):
		t.Fatal("handler not called")
	}

	require.Eventually(t, func() bool { return reader.commitCount() == 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)

	m := c.Metrics()
	assert.Equal(t, int64(2), m.MessagesConsumed)
	assert.Equal(t, int64(1), m.MessagesProcessed)
	assert.Equal(t, int64(5), m.Lag)
}

func TestProcessMessage_RetrySucceeds(t *testing.T) {
	c := newConsumerWithReader(&queueReader{}, nil, testConsumerConfig(), nil)

	var calls int
	err := c.processMessage(context.Background(), &common.Message{Topic: "t"}, func(context.Context, *common.Message) error {
		calls++
		if calls < 2 {
			return stderrors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(1), c.Metrics().MessagesRetried)
	assert.Equal(t, int64(1), c.Metrics().MessagesProcessed)
}

func TestProcessMessage_DeadLetters(t *testing.T) {
	dlq := &recordingPublisher{}
	c := newConsumerWithReader(&queueReader{}, dlq, testConsumerConfig(), nil)

	var calls atomic.Int32
	msg := &common.Message{
		Topic:   TopicClaimSubmitted,
		Offset:  17,
		Key:     []byte("k"),
		Value:   []byte(`{"text":""}`),
		Headers: map[string]string{HeaderEventType: EventClaimSubmitted},
	}
	err := c.processMessage(context.Background(), msg, func(context.Context, *common.Message) error {
		calls.Add(1)
		return stderrors.New("claim text is empty")
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	require.Len(t, dlq.msgs, 1)
	dl := dlq.msgs[0]
	assert.Equal(t, TopicDeadLetterClaim, dl.Topic)
	assert.Equal(t, msg.Value, dl.Value)
	assert.Equal(t, TopicClaimSubmitted, dl.Headers[HeaderOriginalTopic])
	assert.Equal(t, "17", dl.Headers[HeaderOriginalOffset])
	assert.Equal(t, "claim text is empty", dl.Headers[HeaderErrorMessage])
	assert.Equal(t, "3", dl.Headers[HeaderAttempts])
	assert.Equal(t, EventClaimSubmitted, dl.Headers[HeaderEventType])
	// The source message's headers are left untouched.
	assert.NotContains(t, msg.Headers, HeaderOriginalTopic)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.MessagesFailed)
	assert.Equal(t, int64(1), m.MessagesDeadLettered)
}

func TestProcessMessage_PermanentSkipsRetries(t *testing.T) {
	dlq := &recordingPublisher{}
	c := newConsumerWithReader(&queueReader{}, dlq, testConsumerConfig(), nil)

	var calls atomic.Int32
	msg := &common.Message{Topic: TopicClaimSubmitted, Offset: 3, Value: []byte(`not json`)}
	err := c.processMessage(context.Background(), msg, func(context.Context, *common.Message) error {
		calls.Add(1)
		return Permanent(stderrors.New("malformed envelope"))
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "1", dlq.msgs[0].Headers[HeaderAttempts])
	assert.Equal(t, "malformed envelope", dlq.msgs[0].Headers[HeaderErrorMessage])
	assert.Zero(t, c.Metrics().MessagesRetried)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))
	base := stderrors.New("boom")
	err := Permanent(base)
	assert.True(t, IsPermanent(err))
	assert.ErrorIs(t, err, base)
	assert.False(t, IsPermanent(base))
	assert.True(t, IsPermanent(errors.Wrap(err, errors.ErrCodeMessagingError, "wrapped")))
}

func TestProcessMessage_DeadLetterFailureIsSwallowed(t *testing.T) {
	dlq := &recordingPublisher{err: stderrors.New("dlq down")}
	c := newConsumerWithReader(&queueReader{}, dlq, testConsumerConfig(), nil)

	err := c.processMessage(context.Background(), &common.Message{Topic: "t"}, func(context.Context, *common.Message) error {
		return stderrors.New("bad")
	})
	assert.NoError(t, err)
	assert.Zero(t, c.Metrics().MessagesDeadLettered)
}

func TestProcessMessage_CancelledDuringBackoff(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.Retry.RetryBackoff = time.Hour
	cfg.Retry.MaxRetryBackoff = time.Hour
	c := newConsumerWithReader(&queueReader{}, nil, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.processMessage(ctx, &common.Message{Topic: "t"}, func(context.Context, *common.Message) error {
		return stderrors.New("bad")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsumerClose_Idempotent(t *testing.T) {
	c := newConsumerWithReader(&queueReader{}, nil, testConsumerConfig(), nil)
	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
}
