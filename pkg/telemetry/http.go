package telemetry

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPTracingMiddleware wraps a handler with otelhttp's automatic server-side
// instrumentation: a span per request, W3C TraceContext extraction from
// inbound headers, and HTTP status/method/route attributes. Requests to
// excludedPaths are still served but get no span (health checks and stats
// polling generate noise with little value).
func HTTPTracingMiddleware(serviceName string, excludedPaths ...string) func(http.Handler) http.Handler {
	var opts []otelhttp.Option
	if len(excludedPaths) > 0 {
		excluded := make(map[string]bool, len(excludedPaths))
		for _, p := range excludedPaths {
			excluded[p] = true
		}
		opts = append(opts, otelhttp.WithFilter(func(r *http.Request) bool {
			return !excluded[r.URL.Path]
		}))
	}
	opts = append(opts, otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
		return "HTTP " + r.Method + " " + r.URL.Path
	}))

	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName, opts...)
	}
}
