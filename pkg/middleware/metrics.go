package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/larpkeep/characterhub/pkg/observability"
)

// Instrument is a mux middleware that counts and times requests. It must be
// attached with router.Use so the matched route is available; the path label
// uses the route template, not the raw URL, so path variables do not blow up
// metric cardinality.
func Instrument(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			routePath := "unmatched"
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					routePath = tmpl
				}
			}
			metrics.InstrumentHandler(routePath, next).ServeHTTP(w, r)
		})
	}
}
