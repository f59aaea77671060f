// Package api implements the Calendario REST API using chi.
package api

import (
	"net/http"
	"strings"

	"github.com/vale-ieu/calendario/internal/auth"
)

// AuthOptions configures the bearer-credential middleware.
type AuthOptions struct {
	Enabled      bool
	Token        string
	PasswordHash string
}

// AuthMiddleware validates the Authorization header. Disabled mode
// passes everything through. Otherwise the Bearer value must match the
// configured token, or verify against the Argon2id password hash when
// one is set instead.
func AuthMiddleware(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !opts.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			credential := strings.TrimPrefix(header, "Bearer ")

			ok := false
			switch {
			case opts.PasswordHash != "":
				ok = auth.VerifyPassword(credential, opts.PasswordHash)
			case opts.Token != "":
				ok = auth.VerifyToken(credential, opts.Token)
			}
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
