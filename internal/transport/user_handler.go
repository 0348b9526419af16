package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"ecommerce-api/internal/middleware"
	"ecommerce-api/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"omitempty,max=150"`
	LastName  string `json:"last_name" validate:"omitempty,max=150"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest represents the token refresh request payload
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest names the refresh token to revoke. An empty token signs the
// user out everywhere.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// ProfilePatchRequest carries the profile fields a user may change on their
// own account
type ProfilePatchRequest struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
}

// UserPatchRequest is the staff variant, which may also change the role
type UserPatchRequest struct {
	ProfilePatchRequest
	Role *string `json:"role" validate:"omitempty,oneof=user admin"`
}

// CreateUserRequest is staff account creation
type CreateUserRequest struct {
	RegisterRequest
	Role string `json:"role" validate:"omitempty,oneof=user admin"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         UserProfile `json:"user"`
}

// RefreshResponse represents the token refresh response
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// UserHandler handles HTTP requests for user operations
type UserHandler struct {
	userService service.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService service.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger,
	}
}

// RegisterRoutes registers the auth and profile routes
func (h *UserHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/refresh", h.RefreshToken)

		r.With(authMiddleware).Post("/logout", h.Logout)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/me", h.GetProfile)
		r.Patch("/me", h.UpdateProfile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(h.logger))
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Patch("/{id}", h.UpdateUser)
			r.Delete("/{id}", h.DeleteUser)
		})
	})
}

// Register handles user registration
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User registered successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusCreated, toUserProfile(user))
}

// Login handles user authentication
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	tokens, user, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User logged in successfully", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         toUserProfile(user),
	})
}

// Logout revokes the given refresh token, or all of the caller's tokens when
// the body is empty
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return
	}

	var req LogoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Debug("Logout decode failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.userService.Logout(r.Context(), principal.UserID, req.RefreshToken); err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User logged out", zap.String("user_id", principal.UserID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "logged out successfully",
	})
}

// RefreshToken handles access token refresh
func (h *UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	accessToken, err := h.userService.RefreshToken(r.Context(), req.RefreshToken)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, RefreshResponse{AccessToken: accessToken})
}

// profileTarget resolves whose profile /api/users/me addresses. Staff may
// name another account with ?user_id=; for everyone else it is ignored.
func (h *UserHandler) profileTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	principal, ok := requirePrincipal(w, r, h.logger)
	if !ok {
		return uuid.Nil, false
	}
	raw := r.URL.Query().Get("user_id")
	if raw == "" || !principal.IsStaff() {
		return principal.UserID, true
	}
	return uuidField(w, "user_id", raw)
}

// GetProfile returns the authenticated user's profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.profileTarget(w, r)
	if !ok {
		return
	}
	h.writeUser(w, r, userID)
}

// UpdateProfile changes name and email. Roles only change through the staff
// routes.
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.profileTarget(w, r)
	if !ok {
		return
	}

	var req ProfilePatchRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	h.applyPatch(w, r, userID, service.UserPatch{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	profiles := make([]UserProfile, 0, len(users))
	for _, user := range users {
		profiles = append(profiles, toUserProfile(user))
	}
	middleware.RespondWithJSON(w, http.StatusOK, profiles)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}

	user, err := h.userService.Register(r.Context(), service.RegisterInput{
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User created by staff",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, toUserProfile(user))
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "user")
	if !ok {
		return
	}
	h.writeUser(w, r, userID)
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "user")
	if !ok {
		return
	}

	var req UserPatchRequest
	if !decodeRequest(w, r, h.logger, &req) {
		return
	}
	h.applyPatch(w, r, userID, service.UserPatch{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	})
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := idParam(w, r, "user")
	if !ok {
		return
	}

	if err := h.userService.DeleteUser(r.Context(), userID); err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User deleted", zap.String("user_id", userID.String()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	user, err := h.userService.GetUserByID(r.Context(), userID)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, toUserProfile(user))
}

func (h *UserHandler) applyPatch(w http.ResponseWriter, r *http.Request, userID uuid.UUID, patch service.UserPatch) {
	user, err := h.userService.UpdateUser(r.Context(), userID, patch)
	if err != nil {
		respondWithDomainError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User profile updated", zap.String("user_id", user.ID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, toUserProfile(user))
}
