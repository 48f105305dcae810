package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// routeLabels is the closed set of path label values. Anything else is
// folded into one of the two catch-alls.
var routeLabels = []string{"/", "/healthz", "/metrics", "/v1/rpc", "/v1/languages", "/v1/{other}", "{other}"}

// HTTPMiddleware instruments next with the promhttp handler chain: in-flight,
// duration, count by code and method, and request size, all labelled by route.
func HTTPMiddleware(m *Metrics, next http.Handler) http.Handler {
	byRoute := make(map[string]http.Handler, len(routeLabels))
	for _, route := range routeLabels {
		labels := prometheus.Labels{"path": route}
		byRoute[route] = promhttp.InstrumentHandlerDuration(m.HTTPDuration.MustCurryWith(labels),
			promhttp.InstrumentHandlerCounter(m.HTTPRequests.MustCurryWith(labels),
				promhttp.InstrumentHandlerRequestSize(m.HTTPRequestSize.MustCurryWith(labels), next)))
	}

	return promhttp.InstrumentHandlerInFlight(m.HTTPRequestsInFlight,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			byRoute[normalizePath(r.URL.Path)].ServeHTTP(w, r)
		}))
}

// normalizePath maps a request path onto routeLabels.
func normalizePath(path string) string {
	switch path {
	case "/", "/healthz", "/metrics", "/v1/rpc", "/v1/languages":
		return path
	}
	if strings.HasPrefix(path, "/v1/") {
		return "/v1/{other}"
	}
	return "{other}"
}
