package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/raterudder/energysync/pkg/log"
)

// tokenVerifier validates a raw ID token and returns its email claim.
type tokenVerifier func(ctx context.Context, rawIDToken string) (string, error)

func emailVerifier(v *oidc.IDTokenVerifier) tokenVerifier {
	return func(ctx context.Context, rawIDToken string) (string, error) {
		idToken, err := v.Verify(ctx, rawIDToken)
		if err != nil {
			return "", err
		}
		var claims struct {
			Email string `json:"email"`
		}
		if err := idToken.Claims(&claims); err != nil {
			return "", err
		}
		if claims.Email == "" {
			return "", errors.New("missing email claim")
		}
		return claims.Email, nil
	}
}

// authMiddleware requires a bearer ID token from one of the allowed emails,
// e.g. from Cloud Scheduler, unless auth is bypassed.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = log.WithAttrs(ctx, slog.String("reqPath", r.URL.Path))

		if s.bypassAuth {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeJSONError(w, "missing authorization header", http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			log.Ctx(ctx).WarnContext(ctx, "invalid auth header")
			writeJSONError(w, "invalid auth header", http.StatusBadRequest)
			return
		}

		email, err := s.authenticateToken(ctx, strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "token validation failed", slog.Any("error", err))
			writeJSONError(w, "invalid token", http.StatusUnauthorized)
			return
		}
		if !s.emailAllowed(email) {
			log.Ctx(ctx).WarnContext(ctx, "unauthorized email", slog.String("email", email))
			writeJSONError(w, "unauthorized email", http.StatusForbidden)
			return
		}

		ctx = log.WithAttrs(ctx, slog.String("email", email))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) emailAllowed(email string) bool {
	for _, allowed := range s.syncEmails {
		if subtle.ConstantTimeCompare([]byte(email), []byte(allowed)) == 1 {
			return true
		}
	}
	return false
}

func (s *Server) authenticateToken(ctx context.Context, token string) (string, error) {
	var errs []error

	for providerName, verifier := range s.oidcVerifiers {
		email, err := verifier(ctx, token)
		if err == nil {
			return email, nil
		}
		errs = append(errs, fmt.Errorf("%s verifier failed: %v", providerName, err))
	}

	if len(errs) > 1 {
		return "", errors.Join(errs...)
	}
	if len(errs) == 1 {
		return "", errs[0]
	}
	return "", errors.New("no valid audiences configured or token invalid")
}
