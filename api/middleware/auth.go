package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	pkgAuth "github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	// SessionHeader carries the guest cart session.
	SessionHeader = "X-Session-Id"
)

// Identity resolves the caller. A bearer token is optional, but when present it
// must be valid. The guest session id is read from X-Session-Id.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			fields := map[string]any{}

			sessionID, err := validators.SessionID(r.Header.Get(SessionHeader))
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if sessionID != "" {
				ctx = WithSessionID(ctx, sessionID)
				fields["session_id"] = sessionID
			}

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token, ok := pkgAuth.BearerToken(raw)
				if !ok {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed authorization header"))
					return
				}
				claims, err := pkgAuth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				ctx = WithUserID(ctx, claims.UserID.String())
				ctx = WithRole(ctx, string(claims.Role))
				fields["user_id"] = claims.UserID.String()
				fields["actor_role"] = string(claims.Role)
			}

			if logg != nil && len(fields) > 0 {
				ctx = logg.WithFields(ctx, fields)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
