package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	alarmapp "hydro-dashboard/internal/alarms/application"
	alarms "hydro-dashboard/internal/alarms/domain"
	sensors "hydro-dashboard/internal/sensors/domain"
)

const timeLayout = time.RFC3339

// Lister reads the alert history.
type Lister interface {
	List(ctx context.Context, q alarmapp.AlertQuery) ([]alarms.Alert, error)
}

// Handler provides alert history HTTP endpoints.
type Handler struct {
	service Lister
}

// NewHandler constructs a handler.
func NewHandler(service Lister) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alarms handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles GET /api/v1/alerts?parameter=&from=&limit=.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	q := alarmapp.AlertQuery{Parameter: sensors.ParameterKey(r.URL.Query().Get("parameter"))}

	from, err := parseTimeQuery(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q.Since = from

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		q.Limit = limit
	}

	list, err := h.service.List(r.Context(), q)
	if err != nil {
		if errors.Is(err, alarms.ErrUnknownParameter) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

// parseTimeQuery reads an optional RFC3339 query value.
func parseTimeQuery(r *http.Request, key string) (time.Time, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, errors.New(key + " must be RFC3339")
	}
	return parsed.UTC(), nil
}
