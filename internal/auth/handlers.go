package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"voipgate-backend/internal/apperror"
	"voipgate-backend/internal/cache"
	"voipgate-backend/internal/middleware"
	"voipgate-backend/internal/models"
	"voipgate-backend/internal/response"
	"voipgate-backend/internal/voipms"
)

// UserStore is the credential store contract. Find methods return (nil, nil)
// when no row matches.
type UserStore interface {
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByVoipmsID(ctx context.Context, clientID string) (*models.User, error)
	FindUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// Directory resolves the upstream client list during registration.
type Directory interface {
	GetClients(ctx context.Context) (*voipms.ClientsResponse, error)
}

type Handler struct {
	store     UserStore
	directory Directory
	limiter   cache.Client // nil disables rate limiting
	validate  *validator.Validate
}

func NewHandler(store UserStore, directory Directory, limiter cache.Client) *Handler {
	return &Handler{
		store:     store,
		directory: directory,
		limiter:   limiter,
		validate:  validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	if h.limiter != nil {
		r.With(middleware.RateLimitRegister(h.limiter)).Post("/register", h.Register)
		r.With(middleware.RateLimitLogin(h.limiter)).Post("/login", h.Login)
	} else {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	}
	r.Get("/verify", h.Verify)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(Middleware)
		r.Get("/me", h.Me)
	})
}

type registerRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register binds a local account to the VoIP.ms client whose email matches.
// @Summary Register a portal account
// @Description Verifies the email against the VoIP.ms client list, then creates the account and returns a JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Router /api/auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if msg := h.credentialError(req); msg != "" {
		response.Fail(w, http.StatusBadRequest, msg)
		return
	}

	ctx := r.Context()
	log.Printf("auth: registration attempt for %s", req.Email)

	existing, err := h.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		log.Printf("auth: user lookup failed: %v", err)
		response.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if existing != nil {
		response.Fail(w, http.StatusConflict, "Email already registered")
		return
	}

	// No per-email query exists upstream; the full client list is the only
	// way to verify membership.
	clients, err := h.directory.GetClients(ctx)
	if err != nil || clients.Status != voipms.StatusSuccess || len(clients.Clients) == 0 {
		if err != nil {
			log.Printf("auth: getClients failed: %v", err)
		} else {
			log.Printf("auth: getClients returned status %q", clients.Status)
		}
		response.Fail(w, http.StatusServiceUnavailable, "Unable to verify with VoIP.ms system. Please try again later.")
		return
	}

	var match *voipms.ClientRecord
	for i := range clients.Clients {
		if strings.EqualFold(clients.Clients[i].Email, req.Email) {
			match = &clients.Clients[i]
			break
		}
	}
	if match == nil {
		log.Printf("auth: email not found in VoIP.ms client list: %s", req.Email)
		response.Fail(w, http.StatusNotFound, "Email not found in VoIP.ms system. Please contact support.")
		return
	}

	company := match.Company
	if company == "" {
		company = "N/A"
	}

	bound, err := h.store.FindUserByVoipmsID(ctx, match.Client)
	if err != nil {
		log.Printf("auth: client lookup failed: %v", err)
		response.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if bound != nil {
		response.Fail(w, http.StatusConflict, "This VoIP.ms account is already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		response.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	user := &models.User{
		ID:             uuid.New().String(),
		Email:          req.Email,
		PasswordHash:   string(hash),
		VoipmsClientID: match.Client,
		Company:        company,
		Role:           models.RoleClient,
		Status:         models.StatusActive,
	}
	if err := h.store.CreateUser(ctx, user); err != nil {
		// The unique violation can be on email or voipms_client_id when two
		// registrations race; the message stays neutral about which.
		if errors.Is(err, apperror.ErrConflict) {
			response.Fail(w, http.StatusConflict, "Account already registered")
			return
		}
		log.Printf("auth: create user failed: %v", err)
		response.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	token, err := GenerateToken(user)
	if err != nil {
		log.Printf("auth: token generation failed: %v", err)
		response.Fail(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.Printf("auth: user registered: %s (client %s)", user.Email, user.VoipmsClientID)
	response.JSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"token":   token,
		"user":    user.PublicFields(),
	})
}

// Login authenticates a stored account and returns a JWT token.
// @Summary Portal login
// @Tags auth
// @Accept json
// @Produce json
// @Router /api/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.validate.Struct(req); err != nil {
		response.Fail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	ctx := r.Context()
	log.Printf("auth: login attempt for %s", req.Email)

	user, err := h.store.FindUserByEmail(ctx, req.Email)
	if err != nil {
		log.Printf("auth: user lookup failed: %v", err)
		response.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	// Unknown email and wrong password produce the same reply so accounts
	// cannot be enumerated.
	if user == nil {
		response.Fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if user.Status != models.StatusActive {
		log.Printf("auth: login rejected, account inactive: %s", req.Email)
		response.Fail(w, http.StatusForbidden, "Account is inactive. Please contact support.")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		response.Fail(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, err := GenerateToken(user)
	if err != nil {
		log.Printf("auth: token generation failed: %v", err)
		response.Fail(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	log.Printf("auth: login successful: %s", req.Email)
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"token":   token,
		"user":    user.PublicFields(),
	})
}

// Verify checks a bearer token without touching the store.
// @Summary Verify a session token
// @Tags auth
// @Produce json
// @Router /api/auth/verify [get]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	claims, err := ParseToken(token)
	if err != nil {
		response.Fail(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": map[string]any{
			"id":      claims.Subject,
			"email":   claims.Email,
			"company": claims.Company,
			"role":    claims.Role,
		},
	})
}

// Me returns the current account's stored record.
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Router /api/auth/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		response.Fail(w, http.StatusUnauthorized, "No token provided")
		return
	}

	user, err := h.store.FindUserByID(r.Context(), claims.Subject)
	if err != nil {
		log.Printf("auth: user lookup failed: %v", err)
		response.Fail(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if user == nil {
		response.Fail(w, http.StatusNotFound, "User not found")
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    user,
	})
}

// Logout exists for API symmetry; tokens are stateless, the client discards
// its copy.
// @Summary Logout
// @Tags auth
// @Produce json
// @Router /api/auth/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Logged out successfully",
	})
}

func (h *Handler) credentialError(req registerRequest) string {
	err := h.validate.Struct(req)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() == "Password" && fe.Tag() == "min" {
				return "Password must be at least 6 characters"
			}
		}
	}
	return "Email and password are required"
}
