package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/internal/testsupport"
	"tradelens/pkg/errors"
)

func newSavedAnalysisTest(t *testing.T) (*SavedAnalysisRepository, *TestFixtures) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testsupport.NewTestPostgres(t)
	t.Cleanup(testDB.Close)

	fixtures := NewTestFixtures(t, testDB.Tx())
	return NewSavedAnalysisRepository(testDB.Tx()), fixtures
}

func TestSavedAnalysisRepository_RoundTrip(t *testing.T) {
	repo, fixtures := newSavedAnalysisTest(t)
	ctx := context.Background()
	userID := randomUserID()

	filters := &trade.FilterSelection{
		Sectors:   []string{"Electronics"},
		Countries: []string{"China"},
		TradeType: trade.TradeTypeImports,
		YearFrom:  2020,
		YearTo:    2024,
	}
	created := fixtures.CreateSavedAnalysis(userID, func(f *SavedAnalysisFixture) {
		f.Title = "India-China Trade 2020-2024"
		f.Filters = filters
	})

	got, err := repo.GetByID(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.Nil(t, got.Description)
	assert.Equal(t, created.QueryParams, got.QueryParams)
	assert.Equal(t, saved.QueryImport, got.QueryParams.TradeType)
	require.NotNil(t, got.Results)
	assert.Equal(t, created.Results.Summary, got.Results.Summary)
	assert.Equal(t, created.Results.Stats, got.Results.Stats)
	assert.Equal(t, created.Results.ChartData, got.Results.ChartData)
	assert.Equal(t, 0, got.ViewCount)
	assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestSavedAnalysisRepository_NullResults(t *testing.T) {
	repo, fixtures := newSavedAnalysisTest(t)
	userID := randomUserID()

	created := fixtures.CreateSavedAnalysis(userID, WithoutResults())

	got, err := repo.GetByID(context.Background(), userID, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Results)
}

func TestSavedAnalysisRepository_UserScoping(t *testing.T) {
	repo, fixtures := newSavedAnalysisTest(t)
	ctx := context.Background()
	owner, other := randomUserID(), randomUserID()

	created := fixtures.CreateSavedAnalysis(owner)

	_, err := repo.GetByID(ctx, other, created.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	title := "Hijacked"
	_, err = repo.Update(ctx, other, created.ID, saved.UpdateInput{Title: &title})
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	err = repo.IncrementViewCount(ctx, other, created.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	deleted, err := repo.Delete(ctx, other, created.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	items, err := repo.ListByUser(ctx, other, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	got, err := repo.GetByID(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)
	assert.Equal(t, 0, got.ViewCount)
}

func TestSavedAnalysisRepository_IncrementViewCount(t *testing.T) {
	repo, fixtures := newSavedAnalysisTest(t)
	ctx := context.Background()
	userID := randomUserID()

	created := fixtures.CreateSavedAnalysis(userID)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.IncrementViewCount(ctx, userID, created.ID))
	}

	got, err := repo.GetByID(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ViewCount)

	err = repo.IncrementViewCount(ctx, userID, uuid.New())
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSavedAnalysisRepository_ListAndRecent(t *testing.T) {
	repo, fixtures := newSavedAnalysisTest(t)
	ctx := context.Background()
	userID := randomUserID()

	base := time.Now().Add(-time.Hour)
	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		a := fixtures.CreateSavedAnalysis(userID, WithCreatedAt(base.Add(time.Duration(i)*time.Minute)))
		ids = append(ids, a.ID)
	}
	fixtures.CreateSavedAnalysis(randomUserID())

	all, err := repo.ListByUser(ctx, userID, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, ids[3], all[0].ID, "newest first")
	assert.Equal(t, ids[0], all[3].ID)

	page, err := repo.ListByUser(ctx, userID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)

	recent, err := repo.Recent(ctx, userID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, ids[3], recent[0].ID)
}

func TestSavedAnalysisRepository_UpdateAndDelete(t *testing.T) {
	repo, fixtures := newSavedAnalysisTest(t)
	ctx := context.Background()
	userID := randomUserID()

	created := fixtures.CreateSavedAnalysis(userID, WithoutResults())

	desc := "Quarterly review"
	public := true
	updated, err := repo.Update(ctx, userID, created.ID, saved.UpdateInput{
		Description: &desc,
		Results:     trade.FallbackResult(),
		IsPublic:    &public,
	})
	require.NoError(t, err)
	assert.Equal(t, created.Title, updated.Title, "title untouched")
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)
	require.NotNil(t, updated.Results)
	assert.Equal(t, "$1,100B", updated.Results.Stats.TotalVolume)
	assert.True(t, updated.IsPublic)

	blank := ""
	updated, err = repo.Update(ctx, userID, created.ID, saved.UpdateInput{Description: &blank})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)
	assert.NotNil(t, updated.Results, "results untouched")

	deleted, err := repo.Delete(ctx, userID, created.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.GetByID(ctx, userID, created.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
