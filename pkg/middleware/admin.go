package middleware

import (
	"net/http"

	"moveout/pkg/errors"
)

// AdminChecker reports whether the session is in admin mode
type AdminChecker interface {
	IsAdmin() bool
}

// RequireAdmin rejects requests with 403 unless admin mode is on
func RequireAdmin(checker AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !checker.IsAdmin() {
				errors.WriteJSON(w, errors.ErrAdminRequired.WithContext("path", r.URL.Path))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
