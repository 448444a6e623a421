package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/prn-tf/stockwarden/internal/domain"
)

type contextKey int

const (
	sessionContextKey contextKey = iota
	claimsContextKey
)

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware authenticates requests carrying a bearer token of the given stage.
// The resumed Session and the token claims are attached to the request context.
func Middleware(tokens *TokenIssuer, authn *Authenticator, stage Stage) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := BearerToken(r)
			if !ok {
				WriteError(w, domain.ErrUnauthenticated)
				return
			}

			claims, err := tokens.Parse(r.Context(), raw)
			if err != nil {
				log.Debug().Err(err).Str("path", r.URL.Path).Msg("bearer authentication failed")
				WriteError(w, err)
				return
			}
			if claims.Stage != stage {
				WriteError(w, domain.ErrUnauthenticated)
				return
			}

			sess, err := authn.ResumeSession(r.Context(), claims.Subject, claims.Stage)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, sess)
			ctx = context.WithValue(ctx, claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects requests whose session role is below required.
// Must run after Middleware.
func RequireRole(authn *Authenticator, required domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := SessionFromContext(r.Context())
			if sess == nil {
				WriteError(w, domain.ErrUnauthenticated)
				return
			}
			if err := authn.Authorize(sess, required); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the Session attached by Middleware, or nil.
func SessionFromContext(ctx context.Context) *Session {
	if sess, ok := ctx.Value(sessionContextKey).(*Session); ok {
		return sess
	}
	return nil
}

// ClaimsFromContext returns the token claims attached by Middleware, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(claimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

// WriteError writes err as a JSON error response.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := NewAPIError(err)
	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	if apiErr.HTTPStatus == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="stockwarden"`)
	}
	w.WriteHeader(apiErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]*APIError{"error": apiErr})
}
