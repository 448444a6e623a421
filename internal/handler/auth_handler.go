package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/auth"
	"github.com/prn-tf/stockwarden/internal/domain"
)

// AuthHandler serves registration, email verification and the two-step login.
type AuthHandler struct {
	authn  *auth.Authenticator
	tokens *auth.TokenIssuer
	logger zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authn *auth.Authenticator, tokens *auth.TokenIssuer, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authn:  authn,
		tokens: tokens,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

// RegisterRoutes registers auth routes.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/verify-email", h.handleVerifyEmail)
	r.Post("/resend-verification", h.handleResendVerification)
	r.Post("/login", h.handleLogin)
	r.With(auth.Middleware(h.tokens, h.authn, auth.StagePending)).Post("/otp", h.handleOTP)
	r.With(auth.Middleware(h.tokens, h.authn, auth.StageFull)).Post("/logout", h.handleLogout)
}

// =============================================================================
// Request / Response Types
// =============================================================================

type registerRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required"`
	Token string `json:"token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type otpRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type tokenResponse struct {
	Token     string       `json:"token"`
	Stage     auth.Stage   `json:"stage"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *domain.User `json:"user,omitempty"`
}

type verificationResponse struct {
	User *domain.User `json:"user"`

	// DeliveryError reports a failed email; the account change stands.
	DeliveryError string `json:"delivery_error,omitempty"`
}

// =============================================================================
// Registration
// =============================================================================

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.authn.Register(r.Context(), auth.RegisterInput{
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, verificationResponseFrom(out))
}

func (h *AuthHandler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.authn.VerifyEmail(r.Context(), req.Email, req.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *AuthHandler) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, err := h.authn.ResendVerification(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, verificationResponseFrom(out))
}

func verificationResponseFrom(out *auth.VerificationOutput) verificationResponse {
	resp := verificationResponse{User: out.User}
	if out.DeliveryErr != nil {
		resp.DeliveryError = out.DeliveryErr.Error()
	}
	return resp
}

// =============================================================================
// Login
// =============================================================================

// handleLogin checks the password and returns a pending token that only the
// OTP endpoint accepts.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, domain.ErrInvalidCredentials)
		return
	}

	sess := auth.NewSession()
	out, err := h.authn.Login(r.Context(), sess, auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(out.User, auth.StagePending)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		Stage:     auth.StagePending,
		ExpiresAt: expiresAt,
	})
}

// handleOTP exchanges a pending token plus the emailed code for a session token.
func (h *AuthHandler) handleOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	sess := auth.SessionFromContext(r.Context())
	pendingClaims := auth.ClaimsFromContext(r.Context())

	user, err := h.authn.VerifyOTP(r.Context(), sess, req.Code)
	if err != nil {
		if errors.Is(err, auth.ErrOTPLocked) {
			h.revoke(r, pendingClaims)
		}
		writeError(w, err)
		return
	}
	h.revoke(r, pendingClaims)

	token, expiresAt, err := h.tokens.Issue(user, auth.StageFull)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		Stage:     auth.StageFull,
		ExpiresAt: expiresAt,
		User:      user,
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())
	if err := h.tokens.Revoke(r.Context(), claims); err != nil {
		writeError(w, err)
		return
	}
	h.authn.Logout(auth.SessionFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) revoke(r *http.Request, claims *auth.Claims) {
	if err := h.tokens.Revoke(r.Context(), claims); err != nil {
		h.logger.Warn().Err(err).Msg("failed to revoke pending token")
	}
}
