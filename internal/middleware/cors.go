package middleware

import (
	"net/http"

	"github.com/aashari/go-onemin-gateway/internal/utils"
)

const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, POST, OPTIONS"
	corsAllowHeaders = "Content-Type, Authorization, API-KEY, X-Request-ID, X-Correlation-ID"
	corsExposeHeader = "X-Request-ID, X-Correlation-ID, Retry-After"
	corsMaxAge       = "86400"
)

// CORSMiddleware adds CORS headers and answers preflight requests with 204.
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set(utils.HeaderAccessControlAllowOrigin, corsAllowOrigin)
		h.Set(utils.HeaderAccessControlAllowMethods, corsAllowMethods)
		h.Set(utils.HeaderAccessControlAllowHeaders, corsAllowHeaders)
		h.Set(utils.HeaderAccessControlExposeHeaders, corsExposeHeader)

		if r.Method == http.MethodOptions {
			h.Set(utils.HeaderAccessControlMaxAge, corsMaxAge)
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
