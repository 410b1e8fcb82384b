package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/taskflow/apiserver/internal/logging"
	"github.com/taskflow/apiserver/internal/services"
)

const (
	msgNoCredential        = "no credential supplied"
	msgMalformedCredential = "malformed credential"
	msgInvalidCredential   = "invalid or expired credential"
)

// TokenVerifier resolves a bearer token to the user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (int, error)
}

// RequireAuth rejects requests without a valid bearer token and binds the
// token's user id into the request context.
func RequireAuth(tokens TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, msgNoCredential)
				return
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeError(w, http.StatusUnauthorized, msgMalformedCredential)
				return
			}

			userID, err := tokens.Verify(parts[1])
			if err != nil {
				logging.FromContext(r.Context()).Debug("token rejected", "error", err)
				writeError(w, http.StatusUnauthorized, msgInvalidCredential)
				return
			}

			ctx := contextWithUserID(r.Context(), userID)
			ctx = logging.WithContext(ctx, logging.FromContext(ctx).With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserHandler provides registration, login and account endpoints.
type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// UserRouter registers user routes. limit guards the credential endpoints
// and may be nil.
func UserRouter(
	r chi.Router,
	userService *services.UserService,
	authMiddleware func(http.Handler) http.Handler,
	limit func(http.Handler) http.Handler,
) {
	handler := NewUserHandler(userService)

	r.Group(func(r chi.Router) {
		if limit != nil {
			r.Use(limit)
		}
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
	})
	r.With(authMiddleware).Delete("/account", handler.DeleteAccount)
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := h.userService.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "user registered", res)
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidBody)
		return
	}

	res, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "login successful", res)
}

// DeleteAccount removes the caller's tasks and account.
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgNoCredential)
		return
	}

	if err := h.userService.DeleteAccount(r.Context(), userID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusOK, "account deleted", nil)
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
