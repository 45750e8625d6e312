package observability

import (
	"time"

	echo "github.com/labstack/echo/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware returns an echo middleware recording a span and HTTP
// request metrics for every call. tracer/metrics may be nil; metrics is
// already nil-safe and a nil tracer just skips span creation.
func HTTPMiddleware(tracer trace.Tracer, metrics *Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}

			ctx := c.Request().Context()
			var span trace.Span
			if tracer != nil {
				ctx, span = tracer.Start(ctx, "http.request",
					trace.WithAttributes(
						attribute.String(AttrHTTPMethod, c.Request().Method),
						attribute.String(AttrHTTPPath, route),
					),
				)
				defer span.End()
				c.SetRequest(c.Request().WithContext(ctx))
			}

			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if status == 0 {
					status = 500
				}
			}

			if span != nil {
				span.SetAttributes(attribute.Int(AttrHTTPStatus, status))
				if err != nil {
					span.RecordError(err)
				}
			}

			metrics.RecordHTTPRequest(c.Request().Method, route, status, time.Since(start))
			return err
		}
	}
}
