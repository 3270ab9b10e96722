package contract

import (
	"context"
	"time"

	"github.com/allisonaustin/cluster-vis/schema"
	"github.com/stretchr/testify/mock"
	"gonum.org/v1/gonum/mat"
)

// MockEngine is a mock implementation of Engine for testing.
type MockEngine struct {
	mock.Mock
}

var _ Engine = &MockEngine{} // Compile-time check

// Decompose implements the Engine interface.
func (m *MockEngine) Decompose(ctx context.Context, d *mat.Dense, maxLevels, maxCycles int, parallel bool) (*schema.DecompositionTree, error) {
	args := m.Called(ctx, d, maxLevels, maxCycles, parallel)
	tree, _ := args.Get(0).(*schema.DecompositionTree)
	return tree, args.Error(1)
}

// SplitPoints implements the Engine interface.
func (m *MockEngine) SplitPoints(totalColumns, maxLevels int) []int {
	args := m.Called(totalColumns, maxLevels)
	points, _ := args.Get(0).([]int)
	return points
}

// DeviationScore implements the Engine interface.
func (m *MockEngine) DeviationScore(d *mat.Dense, splits []int, tree *schema.DecompositionTree, reference, comparison []int, refScore []float64, forBaseline bool) ([]float64, error) {
	args := m.Called(d, splits, tree, reference, comparison, refScore, forBaseline)
	scores, _ := args.Get(0).([]float64)
	return scores, args.Error(1)
}

// MockStoreManager is a mock implementation of StoreManager for testing.
type MockStoreManager struct {
	mock.Mock
}

var _ StoreManager = &MockStoreManager{} // Compile-time check

// GetBaselineStore implements the StoreManager interface.
func (m *MockStoreManager) GetBaselineStore() BaselineStore {
	ret := m.Called()
	store, _ := ret.Get(0).(BaselineStore)
	return store
}

// GetRunStore implements the StoreManager interface.
func (m *MockStoreManager) GetRunStore() RunStore {
	ret := m.Called()
	store, _ := ret.Get(0).(RunStore)
	return store
}

// MockBaselineStore is a mock implementation of BaselineStore for testing.
type MockBaselineStore struct {
	mock.Mock
}

var _ BaselineStore = &MockBaselineStore{} // Compile-time check

// Load implements the BaselineStore interface.
func (m *MockBaselineStore) Load(ctx context.Context) ([]schema.BaselineRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]schema.BaselineRecord)
	return records, args.Error(1)
}

// Save implements the BaselineStore interface.
func (m *MockBaselineStore) Save(ctx context.Context, records []schema.BaselineRecord) error {
	args := m.Called(ctx, records)
	return args.Error(0)
}

// GetStatus implements the BaselineStore interface.
func (m *MockBaselineStore) GetStatus() (schema.CacheStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// Close implements the BaselineStore interface.
func (m *MockBaselineStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockRunStore is a mock implementation of RunStore for testing.
type MockRunStore struct {
	mock.Mock
}

var _ RunStore = &MockRunStore{} // Compile-time check

// BeginRun implements the RunStore interface.
func (m *MockRunStore) BeginRun(startTime time.Time, mode schema.RunMode, configParams map[string]any) (int64, error) {
	args := m.Called(startTime, mode, configParams)
	return args.Get(0).(int64), args.Error(1)
}

// EndRun implements the RunStore interface.
func (m *MockRunStore) EndRun(runID int64, endTime time.Time, featuresScored, featuresSkipped int) error {
	args := m.Called(runID, endTime, featuresScored, featuresSkipped)
	return args.Error(0)
}

// RecordNodeScores implements the RunStore interface.
func (m *MockRunStore) RecordNodeScores(runID int64, scoreTime time.Time, scores []schema.NodeScore) error {
	args := m.Called(runID, scoreTime, scores)
	return args.Error(0)
}

// GetStatus implements the RunStore interface.
func (m *MockRunStore) GetStatus() (schema.RunStatus, error) {
	args := m.Called()
	return args.Get(0).(schema.RunStatus), args.Error(1)
}

// GetAllRuns implements the RunStore interface.
func (m *MockRunStore) GetAllRuns() ([]schema.ScoreRunRecord, error) {
	args := m.Called()
	runs, _ := args.Get(0).([]schema.ScoreRunRecord)
	return runs, args.Error(1)
}

// GetAllNodeScores implements the RunStore interface.
func (m *MockRunStore) GetAllNodeScores() ([]schema.NodeScoreRecord, error) {
	args := m.Called()
	scores, _ := args.Get(0).([]schema.NodeScoreRecord)
	return scores, args.Error(1)
}

// Close implements the RunStore interface.
func (m *MockRunStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockScoreSink is a mock implementation of ScoreSink for testing.
type MockScoreSink struct {
	mock.Mock
}

var _ ScoreSink = &MockScoreSink{} // Compile-time check

// Publish implements the ScoreSink interface.
func (m *MockScoreSink) Publish(ctx context.Context, at time.Time, scores []schema.NodeScore) error {
	args := m.Called(ctx, at, scores)
	return args.Error(0)
}

// Close implements the ScoreSink interface.
func (m *MockScoreSink) Close() {
	m.Called()
}
