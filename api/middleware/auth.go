package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/soundcrate/backend/api/responses"
	pkgAuth "github.com/soundcrate/backend/pkg/auth"
	"github.com/soundcrate/backend/pkg/config"
	pkgerrors "github.com/soundcrate/backend/pkg/errors"
	"github.com/soundcrate/backend/pkg/logger"
)

// IdentityResolver maps the token's external account onto a local user.
type IdentityResolver interface {
	Resolve(ctx context.Context, accountID string) (userID string, err error)
}

// Auth validates a bearer token, resolves the local user and seeds the
// request context with both identifiers.
func Auth(cfg config.JWTConfig, resolver IdentityResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			accountID := claims.AccountID()

			userID := ""
			if resolver != nil {
				userID, err = resolver.Resolve(r.Context(), accountID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
			}

			ctx := context.WithValue(r.Context(), ctxAccountID, accountID)
			if userID != "" {
				ctx = context.WithValue(ctx, ctxUserID, userID)
			}

			if logg != nil {
				fields := map[string]any{"account_id": accountID}
				if userID != "" {
					fields["user_id"] = userID
				}
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth seeds identity when a valid bearer token is present and
// passes anonymous requests through untouched. Routes behind it decide for
// themselves whether a missing identity is acceptable.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				// A malformed token is an authentication failure, not
				// an anonymous request.
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			accountID := claims.AccountID()
			ctx := context.WithValue(r.Context(), ctxAccountID, accountID)
			if logg != nil {
				ctx = logg.WithAccountID(ctx, accountID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
		raw = strings.TrimSpace(raw[7:])
	}
	return raw
}
