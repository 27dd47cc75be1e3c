package httputil

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the shared ingest secret.
const APIKeyHeader = "X-Api-Key"

// APIKeyAuth creates shared-secret authentication middleware. With an
// empty secret the middleware passes every request through: this is the
// intentional "open mode" for trusted-network deployments, announced at
// startup by the app.
func APIKeyAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				key := r.Header.Get(APIKeyHeader)
				if subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
					Error(w, http.StatusForbidden, "invalid api key")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
