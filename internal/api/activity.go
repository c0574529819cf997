package api

import (
	"net/http"
	"time"

	"tradelens/internal/repository/clickhouse"
	"tradelens/pkg/errors"
)

const (
	defaultActivityDays = 30
	maxActivityDays     = 365
	topQueriesLimit     = 10
)

type activityResponse struct {
	Since      time.Time                  `json:"since"`
	Counts     []clickhouse.ActivityCount `json:"counts"`
	TopQueries []clickhouse.QueryCount    `json:"topQueries"`
}

// Activity handles GET /api/activity?days=. It reports the caller's event
// counts by type and the most frequent queries across all users.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if h.activity == nil {
		writeError(w, h.log, errors.Wrap(errors.ErrUnavailable, "activity analytics disabled"))
		return
	}

	days, err := queryInt(r, "days")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if days == 0 {
		days = defaultActivityDays
	}
	if days > maxActivityDays {
		days = maxActivityDays
	}
	since := time.Now().UTC().AddDate(0, 0, -days)

	counts, err := h.activity.CountByType(r.Context(), userID, since)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	top, err := h.activity.TopQueries(r.Context(), since, topQueriesLimit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	if counts == nil {
		counts = []clickhouse.ActivityCount{}
	}
	if top == nil {
		top = []clickhouse.QueryCount{}
	}
	writeJSON(w, http.StatusOK, activityResponse{Since: since, Counts: counts, TopQueries: top})
}
