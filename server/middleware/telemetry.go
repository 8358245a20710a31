package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/appcore/logger"
	"github.com/kbukum/appcore/observability"
)

// UnmatchedRoute labels requests that matched no registered route.
const UnmatchedRoute = "unmatched"

type routeKey struct{}

// routeLabel carries the matched route pattern from the router back out
// to Telemetry.
type routeLabel struct{ route string }

// Telemetry opens a server span per request, continuing any incoming trace
// context, and records the HTTP request metrics. Spans and metrics are
// labelled with the route pattern reported by RouteLabel, or
// UnmatchedRoute, so raw URLs never become label values. A nil metrics
// records spans only.
func Telemetry(metrics *observability.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			label := &routeLabel{}
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx = context.WithValue(ctx, routeKey{}, label)
			ctx, span := observability.StartSpan(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String(observability.AttrMethod, r.Method),
					attribute.String(observability.AttrRequestID, logger.RequestIDFromContext(ctx)),
				),
			)
			defer span.End()

			start := time.Now()
			metrics.HTTPStart(ctx)
			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r.WithContext(ctx))

			route := label.route
			if route == "" {
				route = UnmatchedRoute
			}
			span.SetName(r.Method + " " + route)
			span.SetAttributes(
				attribute.String(observability.AttrRoute, route),
				attribute.Int(observability.AttrStatus, sw.status),
			)
			if sw.status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(sw.status))
			}
			metrics.HTTPEnd(ctx, r.Method, route, sw.status, time.Since(start))
		})
	}
}

// RouteLabel reports gin's matched route pattern to Telemetry. Install it
// with engine.Use before registering routes; it also runs for 404s, where
// the pattern is empty.
func RouteLabel() gin.HandlerFunc {
	return func(c *gin.Context) {
		if label, ok := c.Request.Context().Value(routeKey{}).(*routeLabel); ok {
			label.route = c.FullPath()
		}
		c.Next()
	}
}
