package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// RouteFinder returns the route pattern matching r, or "" if none does.
type RouteFinder func(r *http.Request) string

// MakeRouteFinder resolves route patterns against a chi router.
func MakeRouteFinder(routes chi.Routes) RouteFinder {
	return func(r *http.Request) string {
		rctx := chi.NewRouteContext()
		if routes.Match(rctx, r.Method, r.URL.Path) {
			return rctx.RoutePattern()
		}
		return ""
	}
}

// Instrument wraps the handler with otelhttp. Spans are named after the
// route pattern so that path parameters do not blow up cardinality.
func Instrument(service string, find RouteFinder, tp trace.TracerProvider, mp metric.MeterProvider) Middleware {
	return func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, service,
			otelhttp.WithTracerProvider(tp),
			otelhttp.WithMeterProvider(mp),
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				if route := find(r); route != "" {
					return r.Method + " " + route
				}
				return operation
			}),
		)
	}
}

// Labeler adds the route pattern to the otelhttp metric labels. It must run
// inside Instrument.
func Labeler(find RouteFinder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if route := find(r); route != "" {
				labeler, _ := otelhttp.LabelerFromContext(r.Context())
				labeler.Add(attribute.String("http.route", route))
			}
			next.ServeHTTP(w, r)
		})
	}
}
