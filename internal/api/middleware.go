package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"tradelens/internal/metrics"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		// ServeMux fills Pattern on the shared request
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()

		log.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"route", route,
			"status", sw.status,
			"duration", time.Since(start),
		)
	})
}

func withRecovery(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Errorw("Handler panicked", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withUserID copies the caller's user id header into the request context.
// Authentication happens upstream; the header is trusted as is.
func withUserID(header string, next http.Handler) http.Handler {
	if header == "" {
		header = DefaultUserIDHeader
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(header)); id != "" {
			r = r.WithContext(errors.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func withCORS(userIDHeader string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,"+userIDHeader)
		w.Header().Set("Access-Control-Expose-Headers", SourceHeader+","+SavedHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
