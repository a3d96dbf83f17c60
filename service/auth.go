package service

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"
)

const ApiKeyHeader = "X-API-KEY"

// ApiKeyAuth rejects requests whose X-API-KEY header does not match apiKey. An
// empty apiKey means the server was not configured and every request fails.
func ApiKeyAuth(apiKey string) func(http.Handler) http.Handler {
	if apiKey == "" {
		slog.Warn("API_KEY not set, all authenticated requests will be rejected", "code", logging.AUTH)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				utils.WriteDetail(w, "API key not configured on server", http.StatusServiceUnavailable)
				return
			}

			provided := r.Header.Get(ApiKeyHeader)
			if provided == "" {
				utils.WriteDetail(w, "Missing X-API-KEY header", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				slog.Warn("invalid api key attempt", "remote_addr", r.RemoteAddr, "path", r.URL.Path, "code", logging.AUTH)
				utils.WriteDetail(w, "Invalid API key", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
