package saved

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tradelens/internal/domain/trade"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

const (
	maxTitleLength       = 200
	maxDescriptionLength = 2000
	defaultTitleLength   = 80

	DefaultRecentLimit = 5
	DefaultListLimit   = 50
)

// Service validates and scopes saved-analysis operations
type Service struct {
	repo        Repository
	recentLimit int
	listLimit   int
	log         *logger.Logger
}

// NewService constructs a saved-analysis service. Non-positive limits take
// the defaults.
func NewService(repo Repository, recentLimit, listLimit int) *Service {
	if recentLimit <= 0 {
		recentLimit = DefaultRecentLimit
	}
	if listLimit <= 0 {
		listLimit = DefaultListLimit
	}
	return &Service{
		repo:        repo,
		recentLimit: recentLimit,
		listLimit:   listLimit,
		log:         logger.Get().With("component", "saved_analyses"),
	}
}

// Create validates the input and stores a new analysis
func (s *Service) Create(ctx context.Context, in CreateInput) (*SavedAnalysis, error) {
	if err := requireUser(in.UserID); err != nil {
		return nil, err
	}

	title, err := cleanTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := cleanDescription(in.Description)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &SavedAnalysis{
		ID:          uuid.New(),
		UserID:      in.UserID,
		Title:       title,
		Description: desc,
		QueryParams: NewQueryParams(strings.TrimSpace(in.Query), in.Filters),
		Results:     in.Results,
		IsPublic:    in.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create saved analysis")
	}

	s.log.Infow("Analysis saved", "id", a.ID, "user_id", a.UserID)
	return a, nil
}

// Get returns one analysis owned by userID
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*SavedAnalysis, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if id == uuid.Nil {
		return nil, errors.NewValidationError("id", "is required", id)
	}

	a, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, errors.Wrap(err, "get saved analysis")
	}
	return a, nil
}

// View returns an analysis and counts the view. A failed counter update is
// logged and does not fail the read.
func (s *Service) View(ctx context.Context, userID string, id uuid.UUID) (*SavedAnalysis, error) {
	a, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.IncrementViewCount(ctx, userID, id); err != nil {
		s.log.Warnw("Failed to increment view count", "id", id, "error", err)
		return a, nil
	}
	a.ViewCount++
	return a, nil
}

// List returns a page of the user's analyses, newest first
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]SavedAnalysis, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > s.listLimit {
		limit = s.listLimit
	}
	if offset < 0 {
		offset = 0
	}

	items, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "list saved analyses")
	}
	return items, nil
}

// Recent returns the user's latest analyses for quick access
func (s *Service) Recent(ctx context.Context, userID string, limit int) ([]SavedAnalysis, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = s.recentLimit
	}
	if limit > s.listLimit {
		limit = s.listLimit
	}

	items, err := s.repo.Recent(ctx, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "recent saved analyses")
	}
	return items, nil
}

// Update applies a partial update
func (s *Service) Update(ctx context.Context, userID string, id uuid.UUID, in UpdateInput) (*SavedAnalysis, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if in.Empty() {
		return nil, errors.Wrap(errors.ErrInvalidInput, "nothing to update")
	}

	if in.Title != nil {
		title, err := cleanTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		in.Title = &title
	}
	if in.Description != nil {
		desc, err := cleanDescription(in.Description)
		if err != nil {
			return nil, err
		}
		if desc == nil {
			empty := ""
			desc = &empty
		}
		in.Description = desc
	}

	a, err := s.repo.Update(ctx, userID, id, in)
	if err != nil {
		return nil, errors.Wrap(err, "update saved analysis")
	}
	return a, nil
}

// Delete removes an analysis. It reports false when nothing matched.
func (s *Service) Delete(ctx context.Context, userID string, id uuid.UUID) (bool, error) {
	if err := requireUser(userID); err != nil {
		return false, err
	}

	deleted, err := s.repo.Delete(ctx, userID, id)
	if err != nil {
		return false, errors.Wrap(err, "delete saved analysis")
	}
	if deleted {
		s.log.Infow("Analysis deleted", "id", id, "user_id", userID)
	}
	return deleted, nil
}

// DefaultTitle names an analysis saved without an explicit title. The query
// is used when present, otherwise the filters are summarized.
func DefaultTitle(query string, filters *trade.FilterSelection) string {
	q := strings.Join(strings.Fields(query), " ")
	if q != "" {
		if utf8.RuneCountInString(q) > defaultTitleLength {
			runes := []rune(q)
			q = strings.TrimSpace(string(runes[:defaultTitleLength-3])) + "..."
		}
		return q
	}

	f := trade.DefaultFilters()
	if filters != nil {
		f = filters.Normalize()
	}

	parts := []string{"India"}
	if len(f.Sectors) > 0 {
		parts = append(parts, strings.Join(f.Sectors, ", "))
	}
	switch f.TradeType {
	case trade.TradeTypeImports, trade.TradeTypeExports:
		parts = append(parts, string(f.TradeType))
	default:
		parts = append(parts, "trade")
	}
	if len(f.Countries) > 0 {
		parts = append(parts, "with "+strings.Join(f.Countries, ", "))
	}
	return fmt.Sprintf("%s, %d-%d", strings.Join(parts, " "), f.YearFrom, f.YearTo)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return errors.Wrap(errors.ErrUnauthorized, "user id is required")
	}
	return nil
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.NewValidationError("title", "is required", title)
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", errors.NewValidationError("title", fmt.Sprintf("must be at most %d characters", maxTitleLength), title)
	}
	return title, nil
}

func cleanDescription(desc *string) (*string, error) {
	if desc == nil {
		return nil, nil
	}
	d := strings.TrimSpace(*desc)
	if d == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(d) > maxDescriptionLength {
		return nil, errors.NewValidationError("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLength), len(d))
	}
	return &d, nil
}
