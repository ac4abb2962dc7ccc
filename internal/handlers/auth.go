package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cidco-records/apiserver/internal/services"
	"github.com/cidco-records/apiserver/internal/store"
	"github.com/cidco-records/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
)

const defaultTokenTTL = 24 * time.Hour
const adminRole = "admin"

// genericResetMessage is returned from forgot-password regardless of
// whether the identifier matched, to prevent account enumeration.
const genericResetMessage = "If an account with that email or username exists, a reset link has been sent."

// UserHandler provides authentication and account-management endpoints.
type UserHandler struct {
	userService *services.UserService
	secret      []byte
	tokenTTL    time.Duration
}

// NewUserHandler constructs a UserHandler with the provided dependencies.
func NewUserHandler(userService *services.UserService, jwtSecret string) *UserHandler {
	return &UserHandler{
		userService: userService,
		secret:      []byte(jwtSecret),
		tokenTTL:    defaultTokenTTL,
	}
}

// UserRouter registers credential and account routes on the given router.
func UserRouter(r chi.Router, userService *services.UserService, jwtSecret string) {
	handler := NewUserHandler(userService, jwtSecret)

	r.Post("/login", handler.Login)
	r.Post("/forgot-password", handler.ForgotPassword)
	r.Post("/reset-password", handler.ResetPassword)
	r.Route("/users", func(r chi.Router) {
		r.With(handler.RequireAuth, handler.requireAdmin).Post("/add", handler.AddUser)
		r.With(handler.RequireAuth).Post("/update-password", handler.UpdatePassword)
	})
}

// RequireAuth enforces JWT authentication and injects the subject into context.
func (h *UserHandler) RequireAuth(next http.Handler) http.Handler {
	return requireAuth(h.secret)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return requireAuth([]byte(jwtSecret))
}

func requireAuth(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, err := bearerToken(r)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			subject, err := parseTokenSubject(tokenString, secret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *UserHandler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := userIDFromContext(r.Context())
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		user, err := h.userService.GetByID(r.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load user")
			return
		}

		if !strings.EqualFold(user.Role, adminRole) {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Login verifies credentials and returns the user with a session token.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	user, err := h.userService.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		slog.Error("login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{User: user, Token: token})
}

// AddUser creates a new credential row. Admin only.
func (h *UserHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req AddUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	repaired, err := h.userService.AddUser(r.Context(), types.User{
		Username: req.Username,
		Email:    strings.TrimSpace(req.Email),
		Name:     strings.TrimSpace(req.Name),
		Role:     strings.TrimSpace(req.Role),
	}, req.Password)
	if err != nil {
		slog.Error("failed to add user", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	message := "User created successfully"
	if repaired {
		message = "User created successfully after sequence repair."
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: message})
}

// UpdatePassword sets a new password for the given user.
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req UpdatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if req.UserID < 1 || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "userId and newPassword are required")
		return
	}

	if err := h.userService.UpdatePassword(r.Context(), req.UserID, req.NewPassword); err != nil {
		slog.Error("failed to update password", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// ForgotPassword issues a reset token and responds identically whether or
// not the identifier matched an account.
func (h *UserHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.userService.ForgotPassword(r.Context(), strings.TrimSpace(req.Identifier)); err != nil {
		slog.Error("forgot password failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error while processing request.")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: genericResetMessage})
}

// ResetPassword consumes a reset token and sets the new password.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.userService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		if errors.Is(err, services.ErrInvalidResetToken) {
			writeError(w, http.StatusBadRequest, "The reset link is invalid or has expired.")
			return
		}
		slog.Error("reset password failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true, Message: "Your password has been successfully updated."})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the authenticated user plus a session token.
type LoginResponse struct {
	types.User
	Token string `json:"token"`
}

type AddUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type UpdatePasswordRequest struct {
	UserID      int    `json:"userId"`
	NewPassword string `json:"newPassword"`
}

type ForgotPasswordRequest struct {
	Identifier string `json:"identifier"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// SuccessResponse is a simple success payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func issueToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func parseTokenSubject(tokenString string, secret []byte) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", errors.New("missing subject")
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
