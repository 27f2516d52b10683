package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"hydro-dashboard/internal/auth"
)

// Authenticator is the login backend.
type Authenticator interface {
	Login(ctx context.Context, phone, pin string) (auth.Session, error)
	SignUp(ctx context.Context, name, phone, pin string) (auth.Session, error)
}

type credentials struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	PIN         string `json:"pin"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves /api/v1/auth/login and /api/v1/auth/signup.
type Handler struct {
	service Authenticator
}

// NewHandler constructs a handler.
func NewHandler(service Authenticator) (*Handler, error) {
	if service == nil {
		return nil, errors.New("auth handler: nil service")
	}
	return &Handler{service: service}, nil
}

// Login handles POST /api/v1/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	session, err := h.service.Login(r.Context(), req.PhoneNumber, req.PIN)
	if err != nil {
		respondError(w, err, auth.LoginFailedMessage)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// SignUp handles POST /api/v1/auth/signup.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	session, err := h.service.SignUp(r.Context(), req.Name, req.PhoneNumber, req.PIN)
	if err != nil {
		respondError(w, err, auth.SignUpFailedMessage)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, bool) {
	var req credentials
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return req, false
	}
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "read body error", http.StatusBadRequest)
		return req, false
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, auth.ErrInvalidPIN):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "PIN must be between 4 and 6 digits."})
	case errors.Is(err, auth.ErrNameRequired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: auth.NameRequiredMessage})
	case errors.Is(err, auth.ErrLoginFailed):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: auth.LoginFailedMessage})
	case errors.Is(err, auth.ErrSignUpFailed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: auth.SignUpFailedMessage})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: fallback})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
