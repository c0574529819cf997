package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"tradelens/internal/domain/saved"
	"tradelens/internal/domain/trade"
	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
)

// Compile-time check that we implement the interface
var _ saved.Repository = (*SavedAnalysisRepository)(nil)

const savedAnalysisColumns = `id, user_id, title, description, query_params, results,
		is_public, view_count, created_at, updated_at`

// savedAnalysisRow is the scan target for saved_analyses
type savedAnalysisRow struct {
	ID          uuid.UUID      `db:"id"`
	UserID      string         `db:"user_id"`
	Title       string         `db:"title"`
	Description sql.NullString `db:"description"`
	QueryParams []byte         `db:"query_params"`
	Results     []byte         `db:"results"`
	IsPublic    bool           `db:"is_public"`
	ViewCount   int            `db:"view_count"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func (r savedAnalysisRow) toDomain() (*saved.SavedAnalysis, error) {
	a := &saved.SavedAnalysis{
		ID:        r.ID,
		UserID:    r.UserID,
		Title:     r.Title,
		IsPublic:  r.IsPublic,
		ViewCount: r.ViewCount,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Description.Valid {
		d := r.Description.String
		a.Description = &d
	}
	if err := json.Unmarshal(r.QueryParams, &a.QueryParams); err != nil {
		return nil, errors.Wrapf(err, "decode query_params of %s", r.ID)
	}
	if len(r.Results) > 0 && string(r.Results) != "null" {
		var res trade.AnalysisResult
		if err := json.Unmarshal(r.Results, &res); err != nil {
			return nil, errors.Wrapf(err, "decode results of %s", r.ID)
		}
		a.Results = &res
	}
	return a, nil
}

// SavedAnalysisRepository implements saved.Repository using sqlx
type SavedAnalysisRepository struct {
	db DBTX
}

// NewSavedAnalysisRepository creates a new saved analysis repository
func NewSavedAnalysisRepository(db DBTX) *SavedAnalysisRepository {
	return &SavedAnalysisRepository{db: db}
}

// Create inserts a new saved analysis
func (r *SavedAnalysisRepository) Create(ctx context.Context, a *saved.SavedAnalysis) (err error) {
	defer observe("insert", time.Now(), &err)

	params, err := json.Marshal(a.QueryParams)
	if err != nil {
		return errors.Wrap(err, "failed to marshal query params")
	}
	results, err := marshalResults(a.Results)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO saved_analyses (
			id, user_id, title, description, query_params, results,
			is_public, view_count, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err = r.db.ExecContext(ctx, query,
		a.ID, a.UserID, a.Title, a.Description, params, results,
		a.IsPublic, a.ViewCount, a.CreatedAt, a.UpdatedAt,
	)
	return err
}

// GetByID retrieves an analysis owned by userID
func (r *SavedAnalysisRepository) GetByID(ctx context.Context, userID string, id uuid.UUID) (a *saved.SavedAnalysis, err error) {
	defer observe("select", time.Now(), &err)

	var row savedAnalysisRow
	query := `SELECT ` + savedAnalysisColumns + ` FROM saved_analyses WHERE id = $1 AND user_id = $2`

	err = r.db.GetContext(ctx, &row, query, id, userID)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "saved analysis not found")
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// ListByUser returns a page of the user's analyses, newest first
func (r *SavedAnalysisRepository) ListByUser(ctx context.Context, userID string, limit, offset int) (items []saved.SavedAnalysis, err error) {
	defer observe("select", time.Now(), &err)

	query := `
		SELECT ` + savedAnalysisColumns + `
		FROM saved_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3`

	var rows []savedAnalysisRow
	if err = r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, err
	}
	return rowsToDomain(rows)
}

// Recent returns the user's latest analyses
func (r *SavedAnalysisRepository) Recent(ctx context.Context, userID string, limit int) ([]saved.SavedAnalysis, error) {
	return r.ListByUser(ctx, userID, limit, 0)
}

// Update applies the non-nil fields of in. An empty description clears it.
func (r *SavedAnalysisRepository) Update(ctx context.Context, userID string, id uuid.UUID, in saved.UpdateInput) (a *saved.SavedAnalysis, err error) {
	defer observe("update", time.Now(), &err)

	results, err := marshalResults(in.Results)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE saved_analyses SET
			title       = COALESCE($3::text, title),
			description = CASE WHEN $4::boolean THEN NULLIF($5::text, '') ELSE description END,
			results     = COALESCE($6::jsonb, results),
			is_public   = COALESCE($7::boolean, is_public),
			updated_at  = NOW()
		WHERE id = $1 AND user_id = $2
		RETURNING ` + savedAnalysisColumns

	var row savedAnalysisRow
	err = r.db.GetContext(ctx, &row, query,
		id, userID, in.Title, in.Description != nil, in.Description, results, in.IsPublic,
	)
	if err == sql.ErrNoRows {
		return nil, errors.Wrap(errors.ErrNotFound, "saved analysis not found")
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

// Delete removes an analysis owned by userID
func (r *SavedAnalysisRepository) Delete(ctx context.Context, userID string, id uuid.UUID) (deleted bool, err error) {
	defer observe("delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM saved_analyses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncrementViewCount bumps the view counter by one
func (r *SavedAnalysisRepository) IncrementViewCount(ctx context.Context, userID string, id uuid.UUID) (err error) {
	defer observe("update", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `
		UPDATE saved_analyses SET view_count = view_count + 1
		WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.Wrap(errors.ErrNotFound, "saved analysis not found")
	}
	return nil
}

func rowsToDomain(rows []savedAnalysisRow) ([]saved.SavedAnalysis, error) {
	out := make([]saved.SavedAnalysis, 0, len(rows))
	for _, row := range rows {
		a, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// marshalResults returns an untyped nil for a nil result so the driver
// writes NULL rather than an empty value
func marshalResults(res *trade.AnalysisResult) (interface{}, error) {
	if res == nil {
		return nil, nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal results")
	}
	return data, nil
}

func observe(operation string, start time.Time, err *error) {
	var e error
	if err != nil {
		e = *err
	}
	if errors.Is(e, errors.ErrNotFound) {
		e = nil
	}
	metrics.RecordDBQuery("postgres", operation, time.Since(start), e)
}
