package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-compliance/internal/auth"
	"github.com/ukydev/fleet-compliance/internal/db"
	"github.com/ukydev/fleet-compliance/internal/middleware"
	"github.com/ukydev/fleet-compliance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles account login, registration and profile management
type AuthHandler struct {
	auth  *auth.Service
	users db.UserCollection
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(svc *auth.Service, users db.UserCollection) *AuthHandler {
	return &AuthHandler{auth: svc, users: users}
}

// UpdateProfileRequest is the payload for profile edits
type UpdateProfileRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ChangePasswordRequest is the payload for password changes
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login authenticates an account and issues tokens
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindUserByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		log.WithError(err).Error("failed to look up account")
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}
	if !user.IsActive {
		http.Error(w, "Account is disabled", http.StatusForbidden)
		return
	}
	if err := h.auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.auth.IssueToken(*user)
	if err != nil {
		log.WithError(err).Error("failed to issue token")
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}
	refresh, err := h.auth.IssueRefreshToken()
	if err != nil {
		log.WithError(err).Error("failed to issue refresh token")
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).Warn("failed to record last login")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.LoginResponse{
		Token:        token,
		RefreshToken: refresh,
		User:         *user,
	})
}

// Register creates a fleet account and logs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := auth.ValidateUsername(req.Username); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := auth.ValidateEmail(req.Email); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	role := req.Role
	if role == "" {
		role = models.RoleViewer
	}
	if !models.IsValidRole(role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}

	if _, err := h.users.FindUserByUsername(r.Context(), req.Username); err == nil {
		http.Error(w, "Username already taken", http.StatusConflict)
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		log.WithError(err).Error("failed to check username")
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}
	if _, err := h.users.FindUserByEmail(r.Context(), req.Email); err == nil {
		http.Error(w, "Email already registered", http.StatusConflict)
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		log.WithError(err).Error("failed to check email")
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	hash, err := h.auth.HashPassword(req.Password)
	if err != nil {
		log.WithError(err).Error("failed to hash password")
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
	}
	if err := h.users.InsertUser(r.Context(), user); err != nil {
		log.WithError(err).Error("failed to insert account")
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	token, err := h.auth.IssueToken(user)
	if err != nil {
		log.WithError(err).Error("failed to issue token")
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}
	refresh, err := h.auth.IssueRefreshToken()
	if err != nil {
		log.WithError(err).Error("failed to issue refresh token")
		http.Error(w, "Registration failed", http.StatusInternalServerError)
		return
	}

	log.WithField("username", user.Username).Info("account registered")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.LoginResponse{
		Token:        token,
		RefreshToken: refresh,
		User:         user,
	})
}

// GetProfile returns the authenticated account
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	user, err := h.users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("failed to load account")
		http.Error(w, "Failed to load profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// UpdateProfile edits name and email of the authenticated account
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("failed to load account")
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	if req.Email != "" && req.Email != user.Email {
		if err := auth.ValidateEmail(req.Email); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if existing, err := h.users.FindUserByEmail(r.Context(), req.Email); err == nil && existing.ID != user.ID {
			http.Error(w, "Email already registered", http.StatusConflict)
			return
		} else if err != nil && !errors.Is(err, db.ErrNotFound) {
			log.WithError(err).Error("failed to check email")
			http.Error(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}
		user.Email = req.Email
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if err := h.users.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		log.WithError(err).Error("failed to update account")
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

// ChangePassword rotates the authenticated account's password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			http.Error(w, "Account not found", http.StatusNotFound)
			return
		}
		log.WithError(err).Error("failed to load account")
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	if err := h.auth.CheckPassword(user.PasswordHash, req.CurrentPassword); err != nil {
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	hash, err := h.auth.HashPassword(req.NewPassword)
	if err != nil {
		log.WithError(err).Error("failed to hash password")
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash

	if err := h.users.UpdateUser(r.Context(), user.ID.Hex(), *user); err != nil {
		log.WithError(err).Error("failed to update account")
		http.Error(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "password updated"})
}
