package repositories

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/mock"

	infraNeo4j "github.com/turtacn/ClaimLens/internal/infrastructure/database/neo4j"
)

// MockExecutor runs work against Tx, or fails with the configured error.
type MockExecutor struct {
	mock.Mock
	Tx *MockTransaction
}

func (m *MockExecutor) ExecuteRead(ctx context.Context, work infraNeo4j.TransactionWork) (any, error) {
	if err := m.Called(ctx).Error(0); err != nil {
		return nil, err
	}
	return work(m.Tx)
}

func (m *MockExecutor) ExecuteWrite(ctx context.Context, work infraNeo4j.TransactionWork) (any, error) {
	if err := m.Called(ctx).Error(0); err != nil {
		return nil, err
	}
	return work(m.Tx)
}

type MockTransaction struct {
	mock.Mock
}

func (m *MockTransaction) Run(ctx context.Context, cypher string, params map[string]any) (infraNeo4j.Result, error) {
	args := m.Called(ctx, cypher, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(infraNeo4j.Result), args.Error(1)
}

// MockResult iterates over Records.
type MockResult struct {
	Records []*neo4j.Record
	Current int
	Error   error
}

func (m *MockResult) Next(context.Context) bool {
	if m.Current < len(m.Records) {
		m.Current++
		return true
	}
	return false
}

func (m *MockResult) Record() *neo4j.Record {
	if m.Current == 0 {
		return nil
	}
	return m.Records[m.Current-1]
}

func (m *MockResult) Err() error { return m.Error }

func (m *MockResult) Consume(context.Context) (neo4j.ResultSummary, error) {
	return nil, m.Error
}

type neo4jRecord = neo4j.Record

func NewRecord(keys []string, values ...any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
}

func newMockExecutor() (*MockExecutor, *MockTransaction) {
	tx := new(MockTransaction)
	return &MockExecutor{Tx: tx}, tx
}
