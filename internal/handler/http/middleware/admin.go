package middleware

import (
	"net/http"

	"github.com/cmlabs-hris/attendance-tracker/internal/handler/http/response"
	"github.com/cmlabs-hris/attendance-tracker/internal/pkg/jwt"
)

func AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := jwt.ClaimsFromContext(r.Context())
		if err != nil {
			response.HandleError(w, err)
			return
		}

		if !claims.IsAdmin() {
			response.HandleError(w, jwt.ErrAdminRoleRequired)
			return
		}

		next.ServeHTTP(w, r)
	})
}
