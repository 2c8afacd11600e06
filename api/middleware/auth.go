package middleware

import (
	"net/http"
	"strings"

	"github.com/fairwaylabs/fairway-pos-backend/api/responses"
	pkgauth "github.com/fairwaylabs/fairway-pos-backend/pkg/auth"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
)

// Auth validates a register session token and seeds the request context with
// the register and employee identity.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgauth.ParseRegisterToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithRegisterSession(r.Context(), claims.RegisterID, claims.EmployeeID, claims.EmployeeName)
			if logg != nil {
				ctx = logg.WithRegisterID(ctx, claims.RegisterID)
				ctx = logg.WithEmployeeID(ctx, claims.EmployeeID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
