package api

import (
	"net/http"
	"strings"
)

// corsMiddleware applies Access-Control headers per corsOrigins, supporting
// a wildcard "*" entry, grounded on the teacher's CORSMiddleware.
func corsMiddleware(corsOrigins []string) func(http.Handler) http.Handler {
	allowAll := len(corsOrigins) == 0
	originSet := make(map[string]bool, len(corsOrigins))
	for _, o := range corsOrigins {
		if o == "*" {
			allowAll = true
		}
		originSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowAll || originSet[origin]) {
				if allowAll {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
				}
				w.Header().Set("Access-Control-Allow-Methods", strings.Join([]string{
					http.MethodGet, http.MethodPost, http.MethodOptions,
				}, ", "))
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
