package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys set by SpanAttributes
const (
	AttrRequestID      = attribute.Key("agency.request_id")
	AttrOrganizationID = attribute.Key("agency.organization_id")
)

// TracingConfig configures request tracing
type TracingConfig struct {
	ServiceName string
	Enabled     bool
	// UntracedPrefixes are path prefixes that never start a span. Defaults to /health.
	UntracedPrefixes []string
	// TracerProvider overrides the global provider
	TracerProvider trace.TracerProvider
}

// TracingWithConfig returns otelgin middleware, or a pass-through when tracing is disabled
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	prefixes := cfg.UntracedPrefixes
	if prefixes == nil {
		prefixes = []string{"/health"}
	}
	opts := []otelgin.Option{
		otelgin.WithFilter(func(r *http.Request) bool {
			return traced(r.URL.Path, prefixes)
		}),
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgin.WithTracerProvider(cfg.TracerProvider))
	}
	return otelgin.Middleware(cfg.ServiceName, opts...)
}

func traced(path string, untraced []string) bool {
	for _, p := range untraced {
		if strings.HasPrefix(path, p) {
			return false
		}
	}
	return true
}

// SpanAttributes decorates the active span after the handlers ran.
// Register it after TracingWithConfig.
func SpanAttributes() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		attrs := make([]attribute.KeyValue, 0, 2)
		if id := GetRequestID(c); id != "" {
			attrs = append(attrs, AttrRequestID.String(id))
		}
		if org, ok := GetOrganizationID(c); ok {
			attrs = append(attrs, AttrOrganizationID.String(org.String()))
		}
		span.SetAttributes(attrs...)

		if status := c.Writer.Status(); status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}
