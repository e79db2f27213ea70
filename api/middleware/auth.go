package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/orderdesk-backend/api/responses"
	pkgAuth "github.com/angelmondragon/orderdesk-backend/pkg/auth"
	"github.com/angelmondragon/orderdesk-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/orderdesk-backend/pkg/errors"
	"github.com/angelmondragon/orderdesk-backend/pkg/logger"
)

// streamTokenParam lets EventSource clients, which cannot set headers, authenticate GETs.
const streamTokenParam = "access_token"

// Auth validates an operator bearer token and seeds the request context with the
// operator, tenant and role it carries.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, r, logg, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				unauthorized(w, r, logg, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			tenantID := claims.TenantID.String()
			operatorID := claims.OperatorID.String()
			ctx := WithTenantID(r.Context(), tenantID)
			ctx = WithOperatorID(ctx, operatorID)
			ctx = WithRole(ctx, string(claims.Role))
			if logg != nil {
				ctx = logg.WithTenantID(ctx, tenantID)
				ctx = logg.WithOperatorID(ctx, operatorID)
				ctx = logg.WithField(ctx, "operator_role", string(claims.Role))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, logg *logger.Logger, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="orderdesk"`)
	responses.WriteError(r.Context(), logg, w, err)
}

// bearerToken reads the Authorization header. GET requests without one may pass the
// token as ?access_token=.
func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		if r.Method != http.MethodGet {
			return "", false
		}
		token := strings.TrimSpace(r.URL.Query().Get(streamTokenParam))
		return token, token != ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
