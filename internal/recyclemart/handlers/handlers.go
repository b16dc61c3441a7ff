package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/25x8/recyclemart/internal/recyclemart/apperr"
	"github.com/25x8/recyclemart/internal/recyclemart/middleware"
	"github.com/25x8/recyclemart/internal/recyclemart/models"
	"github.com/25x8/recyclemart/internal/recyclemart/realtime"
	"github.com/25x8/recyclemart/internal/recyclemart/repository"
	"github.com/25x8/recyclemart/internal/recyclemart/service"
	"github.com/25x8/recyclemart/internal/recyclemart/storage"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// retryAfterSeconds is suggested to clients when the backend is unavailable
const retryAfterSeconds = "5"

// Handler handles all HTTP requests
type Handler struct {
	Repo        repository.Repository
	Waste       *service.WasteService
	Stats       *service.StatsService
	Hub         *realtime.Hub
	Photos      storage.PhotoUploader
	JWTSecret   string
	AdminLogins map[string]bool
	Log         *zap.Logger
}

// selfServiceRoles can be chosen at registration
var selfServiceRoles = map[models.Role]bool{
	models.RoleGenerator:  true,
	models.RoleController: true,
	models.RoleDriver:     true,
	models.RoleRecycler:   true,
	models.RoleMarshal:    true,
}

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type authResponse struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
}

// RegisterUser handles user registration
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req credentials

	// Parse request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	req.Login = strings.TrimSpace(req.Login)
	if req.Login == "" || req.Password == "" {
		http.Error(w, "Login and password are required", http.StatusBadRequest)
		return
	}

	// Resolve role
	role := models.RoleGenerator
	if req.Role != "" {
		parsed, ok := models.ParseRole(req.Role)
		if !ok || !selfServiceRoles[parsed] {
			h.writeError(w, r, apperr.Invalid("role", "must be one of generator, controller, driver, recycler, marshal"))
			return
		}
		role = parsed
	}
	if h.AdminLogins[req.Login] {
		role = models.RoleAdmin
	}

	// Check if user already exists
	ctx := r.Context()
	existingUser, err := h.Repo.GetUserByLogin(ctx, req.Login)
	if err != nil {
		h.writeError(w, r, apperr.Transient("get user by login", err))
		return
	}

	if existingUser != nil {
		http.Error(w, "Login already taken", http.StatusConflict)
		return
	}

	// Hash password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	// Create user
	userID, err := h.Repo.CreateUser(ctx, req.Login, string(hashedPassword), role)
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			http.Error(w, "Login already taken", http.StatusConflict)
			return
		}
		h.writeError(w, r, apperr.Transient("create user", err))
		return
	}

	h.Log.Info("user registered", zap.String("user_id", userID.String()), zap.String("role", string(role)))
	h.issueToken(w, &models.User{ID: userID, Login: req.Login, Role: role})
}

// LoginUser handles user login
func (h *Handler) LoginUser(w http.ResponseWriter, r *http.Request) {
	var req credentials

	// Parse request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if req.Login == "" || req.Password == "" {
		http.Error(w, "Login and password are required", http.StatusBadRequest)
		return
	}

	// Get user
	ctx := r.Context()
	user, err := h.Repo.GetUserByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		h.writeError(w, r, apperr.Transient("get user by login", err))
		return
	}

	// Check password
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		h.Log.Warn("failed login", zap.String("login", req.Login), zap.String("remote_addr", r.RemoteAddr))
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	h.issueToken(w, user)
}

// issueToken sets the auth cookie and header and echoes the identity
func (h *Handler) issueToken(w http.ResponseWriter, user *models.User) {
	token, err := middleware.GenerateToken(user, h.JWTSecret)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	middleware.SetAuthCookie(w, token)
	w.Header().Set("Authorization", "Bearer "+token)
	writeJSON(w, http.StatusOK, authResponse{UserID: user.ID.String(), Role: user.Role})
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// actor extracts the authenticated caller or writes 401
func actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	a, ok := middleware.GetActor(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	}
	return a, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation", Field: ve.Field, Message: ve.Message})
	case errors.Is(err, apperr.ErrUnauthenticated):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, apperr.ErrForbidden):
		h.Log.Warn("forbidden", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden", Message: err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Message: err.Error()})
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "conflict", Message: "record was modified concurrently, reload and retry"})
	case apperr.IsTransient(err):
		h.Log.Warn("backend unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Retry-After", retryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "unavailable", Message: "temporarily unavailable, retry later"})
	default:
		h.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Server error", http.StatusInternalServerError)
	}
}
