package server

import (
	"log"
	"net/http"
	"time"

	"github.com/matthewbaird/probenode/internal/journal"
	"github.com/matthewbaird/probenode/internal/probe"
)

// ReadingsHandler serves the node's reading journal.
type ReadingsHandler struct {
	store journal.Store
}

// NewReadingsHandler creates a handler over store.
func NewReadingsHandler(store journal.Store) *ReadingsHandler {
	return &ReadingsHandler{store: store}
}

type readingsResponse struct {
	Readings []probe.Reading `json:"readings"`
	Total    int             `json:"total"`
}

// ListReadings handles GET /v1/readings?channel=&since=&until=&limit=.
func (h *ReadingsHandler) ListReadings(w http.ResponseWriter, r *http.Request) {
	opts := journal.QueryOptions{Channel: r.URL.Query().Get("channel")}

	var ok bool
	if opts.Limit, ok = parseLimit(r); !ok {
		writeError(w, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a non-negative integer")
		return
	}
	if opts.Since, ok = parseTime(r, "since"); !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "since must be RFC 3339")
		return
	}
	if opts.Until, ok = parseTime(r, "until"); !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "until must be RFC 3339")
		return
	}

	readings, total, err := h.store.Query(r.Context(), opts)
	if err != nil {
		log.Printf("readings: query: %v", err)
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", "query failed")
		return
	}
	writeJSON(w, http.StatusOK, readingsResponse{Readings: readings, Total: total})
}

// Summary handles GET /v1/readings/summary?since=&until=. The window
// defaults to the last 24 hours and covers every reading in it.
func (h *ReadingsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	until := time.Now()
	since := until.Add(-24 * time.Hour)

	s, ok := parseTime(r, "since")
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "since must be RFC 3339")
		return
	}
	if s != nil {
		since = *s
	}
	u, ok := parseTime(r, "until")
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_TIME", "until must be RFC 3339")
		return
	}
	if u != nil {
		until = *u
	}

	summary, err := h.store.Summarize(r.Context(), since, until)
	if err != nil {
		log.Printf("readings: summary: %v", err)
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", "query failed")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
