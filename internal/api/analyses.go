package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"tradelens/internal/domain/saved"
	"tradelens/internal/events"
	"tradelens/pkg/errors"
)

type analysesResponse struct {
	Analyses []saved.SavedAnalysis `json:"analyses"`
}

func requireUser(r *http.Request) (string, error) {
	id := errors.UserIDFromContext(r.Context())
	if id == "" {
		return "", errors.Wrap(errors.ErrUnauthorized, "missing user id")
	}
	return id, nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.NewValidationError("id", "must be a UUID", raw)
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.NewValidationError(name, "must be a non-negative integer", raw)
	}
	return n, nil
}

// ListAnalyses handles GET /api/analyses?limit=&offset=
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	items, err := h.saved.List(r.Context(), userID, limit, offset)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, analysesResponse{Analyses: nonNil(items)})
}

// RecentAnalyses handles GET /api/analyses/recent?limit=
func (h *Handler) RecentAnalyses(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	items, err := h.saved.Recent(r.Context(), userID, limit)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, analysesResponse{Analyses: nonNil(items)})
}

// GetAnalysis handles GET /api/analyses/{id} and counts the view
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	a, err := h.saved.View(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.publish(r.Context(), events.ActivityView, map[string]any{"analysisId": id.String()})
	writeJSON(w, http.StatusOK, a)
}

// CreateAnalysis handles POST /api/analyses
func (h *Handler) CreateAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var in saved.CreateInput
	if err := decodeJSON(w, r, h.maxBody, &in); err != nil {
		writeError(w, h.log, err)
		return
	}
	in.UserID = userID

	a, err := h.saved.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	h.publish(r.Context(), events.ActivitySave, map[string]any{"analysisId": a.ID.String()})
	writeJSON(w, http.StatusCreated, a)
}

// UpdateAnalysis handles PATCH /api/analyses/{id}
func (h *Handler) UpdateAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	var in saved.UpdateInput
	if err := decodeJSON(w, r, h.maxBody, &in); err != nil {
		writeError(w, h.log, err)
		return
	}

	a, err := h.saved.Update(r.Context(), userID, id, in)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// DeleteAnalysis handles DELETE /api/analyses/{id}
func (h *Handler) DeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	userID, err := requireUser(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	deleted, err := h.saved.Delete(r.Context(), userID, id)
	if err != nil {
		writeError(w, h.log, err)
		return
	}
	if !deleted {
		writeError(w, h.log, errors.Wrapf(errors.ErrNotFound, "saved analysis %s", id))
		return
	}
	h.publish(r.Context(), events.ActivityDelete, map[string]any{"analysisId": id.String()})
	w.WriteHeader(http.StatusNoContent)
}

func nonNil(items []saved.SavedAnalysis) []saved.SavedAnalysis {
	if items == nil {
		return []saved.SavedAnalysis{}
	}
	return items
}
