package neo4j

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/ClaimLens/pkg/errors"
)

type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) VerifyConnectivity(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) internalSession {
	return m.Called(ctx, config).Get(0).(internalSession)
}

func (m *MockDriver) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockSession hands work the configured transaction.
type MockSession struct {
	mock.Mock
	tx Transaction
}

func (m *MockSession) ExecuteRead(ctx context.Context, work TransactionWork) (any, error) {
	m.Called(ctx)
	return work(m.tx)
}

func (m *MockSession) ExecuteWrite(ctx context.Context, work TransactionWork) (any, error) {
	m.Called(ctx)
	return work(m.tx)
}

func (m *MockSession) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type MockTransaction struct {
	mock.Mock
}

func (m *MockTransaction) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	args := m.Called(ctx, cypher, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Result), args.Error(1)
}

type fakeResult struct {
	records []*neo4j.Record
	pos     int
	err     error
}

func (r *fakeResult) Next(context.Context) bool {
	if r.pos < len(r.records) {
		r.pos++
		return true
	}
	return false
}

func (r *fakeResult) Record() *neo4j.Record { return r.records[r.pos-1] }
func (r *fakeResult) Err() error            { return r.err }
func (r *fakeResult) Consume(context.Context) (neo4j.ResultSummary, error) {
	return nil, nil
}

func newTestDriver(t *testing.T, db string) (*Driver, *MockDriver, *MockSession, *MockTransaction) {
	t.Helper()
	md := new(MockDriver)
	tx := new(MockTransaction)
	ms := &MockSession{tx: tx}
	md.On("NewSession", mock.Anything, mock.Anything).Return(ms)
	ms.On("ExecuteRead", mock.Anything).Maybe()
	ms.On("ExecuteWrite", mock.Anything).Maybe()
	ms.On("Close", mock.Anything).Return(nil)
	return newDriver(md, Neo4jConfig{Database: db}, nil), md, ms, tx
}

func TestNewDriver_RequiresURI(t *testing.T) {
	_, err := NewDriver(Neo4jConfig{}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestDriver_HealthCheck(t *testing.T) {
	d, md, ms, tx := newTestDriver(t, "")
	md.On("VerifyConnectivity", mock.Anything).Return(nil)
	tx.On("Run", mock.Anything, "RETURN 1 AS health", mock.Anything).
		Return(&fakeResult{records: []*neo4j.Record{{Keys: []string{"health"}, Values: []any{int64(1)}}}}, nil)

	require.NoError(t, d.HealthCheck(context.Background()))
	md.AssertCalled(t, "NewSession", mock.Anything, neo4j.SessionConfig{
		DatabaseName: DefaultDatabase,
		AccessMode:   neo4j.AccessModeRead,
	})
	ms.AssertCalled(t, "Close", mock.Anything)
}

func TestDriver_HealthCheck_Unreachable(t *testing.T) {
	d, md, _, _ := newTestDriver(t, "claims")
	md.On("VerifyConnectivity", mock.Anything).Return(stderrors.New("connection refused"))

	err := d.HealthCheck(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeGraphError))
	md.AssertNotCalled(t, "NewSession", mock.Anything, mock.Anything)
}

func TestDriver_ExecuteWrite(t *testing.T) {
	d, md, ms, tx := newTestDriver(t, "claims")
	tx.On("Run", mock.Anything, "MERGE (n:Claim {id: $id})", map[string]any{"id": "x"}).
		Return(&fakeResult{}, nil)

	got, err := d.ExecuteWrite(context.Background(), func(tx Transaction) (any, error) {
		_, err := tx.Run(context.Background(), "MERGE (n:Claim {id: $id})", map[string]any{"id": "x"})
		return "ok", err
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	md.AssertCalled(t, "NewSession", mock.Anything, neo4j.SessionConfig{
		DatabaseName: "claims",
		AccessMode:   neo4j.AccessModeWrite,
	})
	ms.AssertCalled(t, "Close", mock.Anything)
}

func TestDriver_ExecuteRead_WrapsError(t *testing.T) {
	d, _, ms, _ := newTestDriver(t, "")
	_, err := d.ExecuteRead(context.Background(), func(Transaction) (any, error) {
		return nil, stderrors.New("syntax error")
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeGraphError))
	assert.Contains(t, err.Error(), "neo4j read failed")
	ms.AssertCalled(t, "Close", mock.Anything)
}

func TestDriver_CloseOnce(t *testing.T) {
	d, md, _, _ := newTestDriver(t, "")
	md.On("Close", mock.Anything).Return(nil).Once()

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
	md.AssertNumberOfCalls(t, "Close", 1)
}

func TestCollectRecords(t *testing.T) {
	res := &fakeResult{records: []*neo4j.Record{
		{Keys: []string{"id"}, Values: []any{"a"}},
		{Keys: []string{"id"}, Values: []any{"b"}},
	}}
	ids, err := CollectRecords(context.Background(), res, func(r *neo4j.Record) (string, error) {
		return r.Values[0].(string), nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	_, err = CollectRecords(context.Background(), &fakeResult{err: stderrors.New("stream broken")},
		func(r *neo4j.Record) (string, error) { return "", nil })
	assert.EqualError(t, err, "stream broken")
}

func TestExtractSingleRecord_NotFound(t *testing.T) {
	_, err := ExtractSingleRecord(context.Background(), &fakeResult{}, func(r *neo4j.Record) (int, error) {
		return 0, nil
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}
