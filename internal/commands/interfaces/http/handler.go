package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"hydro-dashboard/internal/audit"
	"hydro-dashboard/internal/auth"
	commandsapp "hydro-dashboard/internal/commands/application"
	commands "hydro-dashboard/internal/commands/domain"
)

// Issuer is the command backend.
type Issuer interface {
	Issue(ctx context.Context, req commandsapp.IssueRequest) (*commands.PumpCommand, error)
	List(ctx context.Context, limit int) ([]commands.PumpCommand, error)
}

type failureResponse struct {
	Error   string                `json:"error"`
	Command *commands.PumpCommand `json:"command,omitempty"`
}

// Handler provides pump command HTTP endpoints.
type Handler struct {
	service Issuer
}

// NewHandler constructs a handler.
func NewHandler(service Issuer) (*Handler, error) {
	if service == nil {
		return nil, errors.New("commands handler: nil service")
	}
	return &Handler{service: service}, nil
}

// ServeHTTP handles POST /api/v1/pump.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	var req commandsapp.IssueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	req.Actor = auth.Actor(r.Context())
	req.Role = string(auth.RoleFromContext(r.Context()))
	req.IP = audit.ClientIP(r)
	req.UserAgent = r.UserAgent()

	cmd, err := h.service.Issue(r.Context(), req)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, cmd)
	case errors.Is(err, commands.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, commandsapp.ErrSinkFailed):
		writeJSON(w, http.StatusBadGateway, failureResponse{Error: "Failed to update pump state. Please try again.", Command: cmd})
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// List handles GET /api/v1/pump/commands.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := 0
	if value := r.URL.Query().Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	list, err := h.service.List(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
