package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"

	"github.com/redmonkez12/quick-flayer-api/internal/httputil"
	"github.com/redmonkez12/quick-flayer-api/internal/logging"
)

const (
	maxBodyBytes      = 1 << 20
	maxEmailLen       = 254
	minPasswordLen    = 8
	maxPasswordBytes  = 72 // bcrypt ignores anything longer
	adminCheckMessage = "You have admin access"
)

var errMalformedBody = errors.New("invalid request body")

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service  *Service
	observer Observer
}

func NewHandler(service *Service, observer Observer) *Handler {
	return &Handler{
		service:  service,
		observer: observerOrNop(observer),
	}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// VerifyRequest represents the token verification request body
type VerifyRequest struct {
	Token string `json:"token"`
}

// VerifyResponse is the payload of a valid token
type VerifyResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Iat   int64  `json:"iat"`
	Exp   int64  `json:"exp"`
}

// Login handles user login
// @Summary      User login
// @Description  Authenticate with email and password and receive an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials or inactive account"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, errMalformedBody.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if msg := validateLogin(req); msg != "" {
		httputil.RespondErrorWithCode(w, msg, httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.observer.LoginAttempt(loginOutcome(err))
		if StatusCode(err) == http.StatusInternalServerError {
			logger.LogError("login failed: internal error", err)
		} else {
			logger.Warn("login rejected", "reason", err.Error())
		}
		writeError(w, err)
		return
	}

	h.observer.LoginAttempt(LoginSuccess)
	logger.Info("user logged in", "user_id", resp.User.ID)
	httputil.RespondJSON(w, resp, http.StatusOK)
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an active account with the user role and receive an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} AuthResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request or validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email already registered"
// @Failure      500 {object} httputil.ErrorResponse "Internal server error"
// @Router       /auth/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, errMalformedBody.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if msg := validateRegister(req); msg != "" {
		logger.Warn("registration failed: validation error", "error", msg)
		httputil.RespondErrorWithCode(w, msg, httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	resp, err := h.service.Register(r.Context(), RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
	})
	if err != nil {
		if StatusCode(err) == http.StatusInternalServerError {
			logger.LogError("registration failed: internal error", err)
		} else {
			logger.Warn("registration rejected", "reason", err.Error())
		}
		writeError(w, err)
		return
	}

	httputil.RespondJSON(w, resp, http.StatusCreated)
}

// Profile returns the caller's profile
// @Summary      Current user profile
// @Description  Return the authenticated user's profile without credentials
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} user.Profile
// @Failure      400 {object} httputil.ErrorResponse "User not found"
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid token"
// @Router       /auth/profile [get]
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		// Only reachable when the route is mounted without the guard
		writeError(w, newError(KindUnauthenticated, MsgMissingAuthentication, httputil.CodeMissingAuth))
		return
	}

	profile, err := h.service.GetProfile(r.Context(), principal.UserID)
	if err != nil {
		if StatusCode(err) == http.StatusInternalServerError {
			logger.LogError("get profile failed", err)
		}
		writeError(w, err)
		return
	}

	httputil.RespondJSON(w, profile, http.StatusOK)
}

// Verify checks a token supplied in the body
// @Summary      Verify a token
// @Description  Return the claims of a valid access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body VerifyRequest true "Token to verify"
// @Success      200 {object} VerifyResponse
// @Failure      400 {object} httputil.ErrorResponse "Invalid request body"
// @Failure      401 {object} httputil.ErrorResponse "Invalid token"
// @Router       /auth/verify [post]
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	// token is left raw so a non-string value is an invalid token, not a bad body
	var req struct {
		Token json.RawMessage `json:"token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErrorWithCode(w, errMalformedBody.Error(), httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	var token string
	if len(req.Token) > 0 {
		_ = json.Unmarshal(req.Token, &token)
	}

	claims, err := h.service.VerifyToken(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}

	httputil.RespondJSON(w, VerifyResponse{
		Sub:   claims.Subject.String(),
		Email: claims.Email,
		Role:  string(claims.Role),
		Iat:   claims.IssuedAt.Unix(),
		Exp:   claims.ExpiresAt.Unix(),
	}, http.StatusOK)
}

// AdminCheck confirms admin access
// @Summary      Admin access check
// @Description  Succeeds only for callers with the admin role
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} httputil.MessageResponse
// @Failure      401 {object} httputil.ErrorResponse "Missing or invalid token"
// @Failure      403 {object} httputil.ErrorResponse "Admin role required"
// @Router       /auth/admin-check [get]
func (h *Handler) AdminCheck(w http.ResponseWriter, r *http.Request) {
	httputil.RespondMessage(w, adminCheckMessage, http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	if len(email) > maxEmailLen {
		return "invalid email format"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "invalid email format"
	}
	return ""
}

func validateLogin(req LoginRequest) string {
	if msg := validateEmail(req.Email); msg != "" {
		return msg
	}
	if req.Password == "" {
		return "password is required"
	}
	return ""
}

func validateRegister(req RegisterRequest) string {
	if msg := validateEmail(req.Email); msg != "" {
		return msg
	}
	switch {
	case req.Password == "":
		return "password is required"
	case len(req.Password) < minPasswordLen:
		return "password must be at least 8 characters"
	case len(req.Password) > maxPasswordBytes:
		return "password must be at most 72 bytes"
	case strings.TrimSpace(req.FirstName) == "":
		return "firstName is required"
	case strings.TrimSpace(req.LastName) == "":
		return "lastName is required"
	}
	return ""
}

func loginOutcome(err error) string {
	var authErr *Error
	if !errors.As(err, &authErr) {
		return LoginError
	}
	if authErr.Code == httputil.CodeAccountInactive {
		return LoginInactive
	}
	return LoginInvalidCredentials
}
