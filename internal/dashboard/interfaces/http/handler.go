package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"hydro-dashboard/internal/analytics/domain/series"
	"hydro-dashboard/internal/analytics/interfaces/export"
	dashboard "hydro-dashboard/internal/dashboard/application"
	hlog "hydro-dashboard/internal/log"
	"hydro-dashboard/internal/observability/metrics"
	sensors "hydro-dashboard/internal/sensors/domain"
)

const defaultGranularity = "last24Hours"

// Dashboard is the read side of the dashboard controller.
type Dashboard interface {
	Current(ctx context.Context) (dashboard.State, error)
	Series(ctx context.Context, key sensors.ParameterKey, g series.Granularity) (series.Series, error)
}

// Handler serves dashboard read endpoints.
type Handler struct {
	dashboard Dashboard
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewHandler constructs a handler.
func NewHandler(d Dashboard, logger *zap.SugaredLogger) (*Handler, error) {
	if d == nil {
		return nil, errors.New("dashboard handler: nil dashboard")
	}
	return &Handler{
		dashboard: d,
		logger:    hlog.OrNop(logger),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// Register mounts the read endpoints on router.
func (h *Handler) Register(router *mux.Router) {
	router.HandleFunc("/api/v1/parameters", h.Parameters).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/readings/current", h.Current).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/classify", h.Classify).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/series", h.Series).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/exports/series.{format:csv|xlsx|pdf}", h.Export).Methods(http.MethodGet)
}

// Parameters handles GET /api/v1/parameters.
func (h *Handler) Parameters(w http.ResponseWriter, r *http.Request) {
	writeResponse(w, r, http.StatusOK, sensors.Specs())
}

// Current handles GET /api/v1/readings/current.
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	state, err := h.dashboard.Current(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResponse(w, r, http.StatusOK, state)
}

// Classify handles GET /api/v1/classify?parameter=&value=.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	key := sensors.ParameterKey(r.URL.Query().Get("parameter"))
	var value *float64
	if raw := strings.TrimSpace(r.URL.Query().Get("value")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "value must be numeric", http.StatusBadRequest)
			return
		}
		value = &v
	}
	writeResponse(w, r, http.StatusOK, sensors.Classify(key, value))
}

// Series handles GET /api/v1/series?parameter=&granularity=.
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	key, g, ok := parseSeriesQuery(w, r)
	if !ok {
		return
	}
	out, err := h.dashboard.Series(r.Context(), key, g)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeResponse(w, r, http.StatusOK, out)
}

// Export handles GET /api/v1/exports/series.{csv,xlsx,pdf}.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	format := mux.Vars(r)["format"]
	key, g, ok := parseSeriesQuery(w, r)
	if !ok {
		return
	}
	started := time.Now()
	out, err := h.dashboard.Series(r.Context(), key, g)
	if err != nil {
		metrics.ObserveSeriesExport(format, metrics.ResultError, time.Since(started))
		h.writeError(w, err)
		return
	}
	spec, _ := sensors.Spec(key)
	body, err := export.Build(format, out, spec, h.now())
	if err != nil {
		metrics.ObserveSeriesExport(format, metrics.ResultError, time.Since(started))
		h.logger.Errorw("series export failed", "format", format, "parameter", key, "error", err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveSeriesExport(format, metrics.ResultSuccess, time.Since(started))

	filename := fmt.Sprintf("%s_%s.%s", key, out.Granularity, format)
	w.Header().Set("Content-Type", export.ContentType(format))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func parseSeriesQuery(w http.ResponseWriter, r *http.Request) (sensors.ParameterKey, series.Granularity, bool) {
	query := r.URL.Query()
	key := sensors.ParameterKey(query.Get("parameter"))
	if key == "" {
		http.Error(w, "parameter is required", http.StatusBadRequest)
		return "", series.Granularity{}, false
	}
	if !key.Known() {
		http.Error(w, "unknown parameter", http.StatusBadRequest)
		return "", series.Granularity{}, false
	}
	raw := query.Get("granularity")
	if raw == "" {
		raw = defaultGranularity
	}
	g, err := series.ParseGranularity(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", series.Granularity{}, false
	}
	return key, g, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dashboard.ErrUnknownParameter), errors.Is(err, series.ErrInvalidGranularity):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, dashboard.ErrNotReady), errors.Is(err, dashboard.ErrStopped):
		http.Error(w, "dashboard not ready", http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "request canceled", http.StatusServiceUnavailable)
	default:
		h.logger.Errorw("dashboard request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeResponse encodes v as JSON, or as MessagePack when format=msgpack.
func writeResponse(w http.ResponseWriter, r *http.Request, status int, v any) {
	if r.URL.Query().Get("format") == "msgpack" {
		w.Header().Set("Content-Type", "application/x-msgpack")
		w.WriteHeader(status)
		enc := msgpack.NewEncoder(w)
		enc.SetCustomStructTag("json")
		_ = enc.Encode(v)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
