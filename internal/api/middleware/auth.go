package middleware

import (
	"context"
	"net/http"
	"strings"

	"dark_api/internal/common"
	"dark_api/internal/common/security"
	"dark_api/internal/domain/model"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const PrincipalCtxKey contextKey = "principal"

// Authenticator turns the verified token into a model.Principal on the request context.
// jwtauth.Verifier must run before it.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())

		if err != nil {
			if strings.Contains(err.Error(), "token not found") || token == nil {
				common.RespondWithError(w, http.StatusUnauthorized, "Authorization token required")
			} else {
				common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
			}
			return
		}

		if token == nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		name, err := security.GetUsernameFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}
		role, err := security.GetUserRoleFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), PrincipalCtxKey, model.Principal{Name: name, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetPrincipalFromContext(ctx context.Context) (model.Principal, bool) {
	p, ok := ctx.Value(PrincipalCtxKey).(model.Principal)
	return p, ok
}
