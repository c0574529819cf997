package postgres

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
)

// randomUserID generates unique user ids for tests
func randomUserID() string {
	return fmt.Sprintf("test_user_%d", 100000000+rand.Int63n(900000000))
}

// TestFixtures provides factory methods for creating test data
type TestFixtures struct {
	db DBTX
	t  *testing.T
}

// NewTestFixtures creates a new test fixtures factory and applies the schema
func NewTestFixtures(t *testing.T, db DBTX) *TestFixtures {
	t.Helper()
	require.NoError(t, EnsureSchema(context.Background(), db), "Failed to apply schema")
	return &TestFixtures{
		db: db,
		t:  t,
	}
}

// SavedAnalysisFixture holds overridable fields for CreateSavedAnalysis
type SavedAnalysisFixture struct {
	Title     string
	Query     string
	Filters   *trade.FilterSelection
	Results   *trade.AnalysisResult
	IsPublic  bool
	CreatedAt time.Time
}

// CreateSavedAnalysis inserts an analysis owned by userID
func (f *TestFixtures) CreateSavedAnalysis(userID string, opts ...func(*SavedAnalysisFixture)) *saved.SavedAnalysis {
	f.t.Helper()

	fixture := &SavedAnalysisFixture{
		Title:     fmt.Sprintf("Test analysis %d", rand.Intn(999999)),
		Query:     "India electronics imports",
		Results:   trade.FallbackResult(),
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	for _, opt := range opts {
		opt(fixture)
	}

	a := &saved.SavedAnalysis{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       fixture.Title,
		QueryParams: saved.NewQueryParams(fixture.Query, fixture.Filters),
		Results:     fixture.Results,
		IsPublic:    fixture.IsPublic,
		CreatedAt:   fixture.CreatedAt,
		UpdatedAt:   fixture.CreatedAt,
	}

	repo := NewSavedAnalysisRepository(f.db)
	require.NoError(f.t, repo.Create(context.Background(), a), "Failed to create saved analysis")
	return a
}

// WithCreatedAt sets the creation time
func WithCreatedAt(ts time.Time) func(*SavedAnalysisFixture) {
	return func(f *SavedAnalysisFixture) {
		f.CreatedAt = ts.UTC().Truncate(time.Microsecond)
	}
}

// WithoutResults stores the analysis with a NULL results column
func WithoutResults() func(*SavedAnalysisFixture) {
	return func(f *SavedAnalysisFixture) {
		f.Results = nil
	}
}
