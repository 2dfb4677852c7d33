package observability

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kart-io/codequery/pkg/infra/middleware/requestutil"
	"github.com/kart-io/codequery/pkg/infra/tracing"
)

const (
	// TracerName is the name of the tracer for HTTP middleware.
	TracerName = "github.com/kart-io/codequery/pkg/infra/middleware"
)

// TracingOptions configures the tracing middleware.
type TracingOptions struct {
	// TracerName is the name to use for the tracer.
	// Default: TracerName constant
	TracerName string

	// SpanNameFormatter formats the span name from the request.
	// Default: "{http.method} {http.route}"
	SpanNameFormatter func(c *gin.Context) string

	// IncludeRequestBody enables capturing request body in span attributes.
	// WARNING: This can expose sensitive data. Use with caution.
	IncludeRequestBody bool

	// IncludeResponseBody enables capturing response body in span attributes.
	// WARNING: This can expose sensitive data. Use with caution.
	IncludeResponseBody bool

	// SkipPaths is a list of paths to skip tracing.
	SkipPaths []string

	// SkipPathPrefixes is a list of path prefixes to skip tracing.
	SkipPathPrefixes []string

	// AttributeExtractor extracts custom attributes from the request.
	AttributeExtractor func(c *gin.Context) []attribute.KeyValue
}

// TracingOption is a functional option for TracingOptions.
type TracingOption func(*TracingOptions)

// NewTracingOptions creates default tracing options.
func NewTracingOptions() *TracingOptions {
	return &TracingOptions{
		TracerName:          TracerName,
		SpanNameFormatter:   defaultSpanNameFormatter,
		IncludeRequestBody:  false,
		IncludeResponseBody: false,
		SkipPaths:           []string{},
		SkipPathPrefixes:    []string{},
	}
}

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(o *TracingOptions) {
		o.TracerName = name
	}
}

// WithSpanNameFormatter sets the span name formatter.
func WithSpanNameFormatter(formatter func(c *gin.Context) string) TracingOption {
	return func(o *TracingOptions) {
		o.SpanNameFormatter = formatter
	}
}

// WithRequestBodyCapture enables request body capture.
func WithRequestBodyCapture(enabled bool) TracingOption {
	return func(o *TracingOptions) {
		o.IncludeRequestBody = enabled
	}
}

// WithResponseBodyCapture enables response body capture.
func WithResponseBodyCapture(enabled bool) TracingOption {
	return func(o *TracingOptions) {
		o.IncludeResponseBody = enabled
	}
}

// WithTracingSkipPaths sets paths to skip tracing.
func WithTracingSkipPaths(paths []string) TracingOption {
	return func(o *TracingOptions) {
		o.SkipPaths = paths
	}
}

// WithTracingSkipPathPrefixes sets path prefixes to skip tracing.
func WithTracingSkipPathPrefixes(prefixes []string) TracingOption {
	return func(o *TracingOptions) {
		o.SkipPathPrefixes = prefixes
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(c *gin.Context) []attribute.KeyValue) TracingOption {
	return func(o *TracingOptions) {
		o.AttributeExtractor = extractor
	}
}

// Tracing creates a tracing middleware.
//
// This middleware:
// - Extracts trace context from incoming requests (W3C Trace Context)
// - Creates a new span for each request
// - Adds standard HTTP attributes (method, URL, status code, etc.)
// - Propagates trace context through the request lifecycle
// - Records errors and exceptions in spans
//
// Usage:
//
//	engine.Use(observability.Tracing())
//
// With options:
//
//	engine.Use(observability.Tracing(
//	    observability.WithTracingSkipPaths([]string{"/health", "/metrics"}),
//	))
func Tracing(opts ...TracingOption) gin.HandlerFunc {
	options := NewTracingOptions()
	for _, opt := range opts {
		opt(options)
	}

	// Skip path map for fast lookup
	skipPathMap := make(map[string]struct{})
	for _, path := range options.SkipPaths {
		skipPathMap[path] = struct{}{}
	}

	propagator := tracing.GetGlobalTextMapPropagator()

	return func(c *gin.Context) {
		req := c.Request
		path := req.URL.Path

		if _, skip := skipPathMap[path]; skip {
			c.Next()
			return
		}

		for _, prefix := range options.SkipPathPrefixes {
			if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
				c.Next()
				return
			}
		}

		// Extract trace context from request headers
		requestCtx := propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		spanName := options.SpanNameFormatter(c)
		spanCtx, span := tracing.StartSpanWithKind(
			requestCtx,
			options.TracerName,
			spanName,
			trace.SpanKindServer,
		)
		defer span.End()

		// Propagate the span context to downstream handlers
		c.Request = req.WithContext(spanCtx)

		attrs := []attribute.KeyValue{
			semconv.HTTPMethod(req.Method),
			semconv.HTTPURL(req.URL.String()),
			semconv.HTTPTarget(req.URL.Path),
			semconv.HTTPScheme(req.URL.Scheme),
			semconv.ServerAddress(req.Host),
		}

		if route := c.FullPath(); route != "" {
			attrs = append(attrs, semconv.HTTPRoute(route))
		}

		if userAgent := req.UserAgent(); userAgent != "" {
			attrs = append(attrs, semconv.UserAgentOriginal(userAgent))
		}

		if clientIP := c.ClientIP(); clientIP != "" {
			attrs = append(attrs, attribute.String(tracing.HTTPClientIP, clientIP))
		}

		if requestID := c.GetHeader(requestutil.HeaderXRequestID); requestID != "" {
			attrs = append(attrs, attribute.String(tracing.HTTPRequestID, requestID))
		}

		if options.AttributeExtractor != nil {
			attrs = append(attrs, options.AttributeExtractor(c)...)
		}

		span.SetAttributes(attrs...)

		c.Next()

		statusCode := c.Writer.Status()
		span.SetAttributes(semconv.HTTPStatusCode(statusCode))

		if statusCode >= 400 {
			span.SetStatus(codes.Error, http.StatusText(statusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		if statusCode >= 500 {
			span.RecordError(fmt.Errorf("HTTP %d: %s", statusCode, http.StatusText(statusCode)))
		}

		// Surface handler errors on the span
		for _, ginErr := range c.Errors {
			span.RecordError(ginErr.Err)
		}
	}
}

// defaultSpanNameFormatter creates a span name from the HTTP method and route.
func defaultSpanNameFormatter(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return fmt.Sprintf("%s %s", c.Request.Method, route)
}

// ExtractTraceID extracts the trace ID from the request context.
// This can be used to add trace ID to logs or responses.
func ExtractTraceID(c *gin.Context) string {
	return tracing.TraceIDFromContext(c.Request.Context())
}

// ExtractSpanID extracts the span ID from the request context.
func ExtractSpanID(c *gin.Context) string {
	return tracing.SpanIDFromContext(c.Request.Context())
}
