package telemetry

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const httpScope = "stride-track/http"

// Middleware opens a span per request and records request count and latency.
// Instruments are looked up per request so providers installed after route
// registration are still used.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, span := otel.Tracer(httpScope).Start(c.UserContext(), c.Method()+" "+c.Path(),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", c.Method()),
				attribute.String("http.url", c.Path()),
			),
		)
		defer span.End()
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}
		if err != nil {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.Int("http.status_code", status))

		route := c.Path()
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		attrs := metric.WithAttributes(
			attribute.String("http.method", c.Method()),
			attribute.String("http.route", route),
			attribute.String("http.status_code", strconv.Itoa(status)),
		)
		meter := Meter(httpScope)
		if counter, cerr := meter.Int64Counter("http.server.request_count"); cerr == nil {
			counter.Add(ctx, 1, attrs)
		}
		if hist, herr := meter.Float64Histogram("http.server.duration", metric.WithUnit("ms")); herr == nil {
			hist.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
		}
		return err
	}
}
