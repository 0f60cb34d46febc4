package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rafiqhealth/rafiq/internal/audit"
	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/safety"
)

type eventsResponse struct {
	Events []audit.Event `json:"events"`
}

// handleSafetyEvents lists recorded safety events for clinical review.
// Query parameters: action, since (RFC 3339), limit. Callers have passed
// requireReviewToken.
func (s *Server) handleSafetyEvents(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query.", err)
		return
	}

	events, err := s.events.List(r.Context(), f)
	if err != nil {
		observe.Logger(r.Context()).Error("list safety events failed", "err", err)
		writeError(w, http.StatusInternalServerError, "Internal error.", nil)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	var f audit.Filter

	if a := q.Get("action"); a != "" {
		f.Action = safety.Action(strings.ToUpper(a))
		if !f.Action.IsValid() {
			return f, fmt.Errorf("unknown action %q", a)
		}
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("since: %w", err)
		}
		f.Since = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("limit must be a positive integer, got %q", v)
		}
		f.Limit = n
	}
	return f, nil
}
