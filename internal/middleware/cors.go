package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORS settings for browser based MCP clients.
const (
	corsAllowOrigin   = "*"
	corsMaxAgeSeconds = 86400
)

var (
	corsAllowMethods  = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	corsAllowHeaders  = []string{"Mcp-Protocol-Version", "Content-Type", "Authorization"}
	corsExposeHeaders = []string{"WWW-Authenticate"}
)

// CORS adds CORS headers to responses for cross-origin requests and answers
// preflight requests directly. Credentials are not allowed.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Add("Vary", "Origin")

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
			h.Set("Access-Control-Allow-Methods", strings.Join(corsAllowMethods, ", "))
			h.Set("Access-Control-Allow-Headers", strings.Join(corsAllowHeaders, ", "))
			h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAgeSeconds))
			w.WriteHeader(http.StatusOK)
			return
		}

		h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
		h.Set("Access-Control-Expose-Headers", strings.Join(corsExposeHeaders, ", "))
		next.ServeHTTP(w, r)
	})
}
