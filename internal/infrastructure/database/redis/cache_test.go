package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	pkgerrors "github.com/turtacn/ClaimLens/pkg/errors"
)

type annotation struct {
	Number   int      `json:"number"`
	Category string   `json:"category"`
	Phrases  []string `json:"phrases"`
}

type CacheTestSuite struct {
	suite.Suite
	mock  redismock.ClientMock
	cache *AnnotationCache
}

func (s *CacheTestSuite) SetupTest() {
	db, mock := redismock.NewClientMock()
	s.mock = mock
	client := newClientWithRDB(db, nil, logging.NewNopLogger())
	s.cache = NewAnnotationCache(client, nil, WithPrefix("test:"), WithTTL(time.Hour), WithLocalTTL(0))
}

func (s *CacheTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
}

func (s *CacheTestSuite) TestGet_Hit() {
	want := annotation{Number: 1, Category: "method", Phrases: []string{"widget"}}
	raw, _ := json.Marshal(want)
	s.mock.ExpectGet("test:k1").SetVal(string(raw))

	var got annotation
	s.Require().NoError(s.cache.Get(context.Background(), "k1", &got))
	s.Equal(want, got)
}

func (s *CacheTestSuite) TestGet_Miss() {
	s.mock.ExpectGet("test:k1").RedisNil()

	var got annotation
	err := s.cache.Get(context.Background(), "k1", &got)
	s.ErrorIs(err, ErrCacheMiss)
	s.True(pkgerrors.IsNotFound(err))
}

func (s *CacheTestSuite) TestGet_CorruptValue() {
	s.mock.ExpectGet("test:k1").SetVal("{not json")

	var got annotation
	err := s.cache.Get(context.Background(), "k1", &got)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeSerialization))
}

func (s *CacheTestSuite) TestSet() {
	v := annotation{Number: 2, Category: "system"}
	raw, _ := json.Marshal(v)
	s.mock.ExpectSet("test:k2", string(raw), time.Hour).SetVal("OK")

	s.NoError(s.cache.Set(context.Background(), "k2", v))
}

func (s *CacheTestSuite) TestDelete() {
	s.mock.ExpectDel("test:k1").SetVal(1)
	s.NoError(s.cache.Delete(context.Background(), "k1"))
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTestSuite))
}

func TestAnnotationCache_LocalOnly(t *testing.T) {
	c := NewAnnotationCache(nil, nil)
	ctx := context.Background()

	var got annotation
	require.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)

	require.NoError(t, c.Set(ctx, "k", annotation{Number: 7}))
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 7, got.Number)

	require.NoError(t, c.Delete(ctx, "k"))
	assert.ErrorIs(t, c.Get(ctx, "k", &got), ErrCacheMiss)
	assert.NoError(t, c.Ping(ctx))
}

func TestAnnotationCache_LocalTierServesRedisHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	c := NewAnnotationCache(newClientWithRDB(db, nil, nil), nil, WithPrefix("t:"))
	raw, _ := json.Marshal(annotation{Number: 9})
	mock.ExpectGet("t:k").SetVal(string(raw))

	var got annotation
	require.NoError(t, c.Get(context.Background(), "k", &got))
	// the second read is served locally; no further redis expectation
	require.NoError(t, c.Get(context.Background(), "k", &got))
	assert.Equal(t, 9, got.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}
