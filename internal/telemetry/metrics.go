package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServerMetrics holds metric instruments for HTTP server telemetry.
// Initialize once at server startup and reuse throughout the application lifecycle.
type ServerMetrics struct {
	RequestCounter  metric.Int64Counter     // Total HTTP requests
	RequestDuration metric.Float64Histogram // HTTP request latency
	ErrorCounter    metric.Int64Counter     // Total HTTP errors (5xx)
}

// NewServerMetrics creates a new ServerMetrics instance with pre-configured instruments.
func NewServerMetrics() (*ServerMetrics, error) {
	meter := otel.Meter("forgeapi/http")

	requestCounter, err := meter.Int64Counter(
		"http.server.request.count",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 5ms .. 5s
	requestDuration, err := meter.Float64Histogram(
		"http.server.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"http.server.error.count",
		metric.WithDescription("Total number of HTTP server errors (5xx)"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &ServerMetrics{
		RequestCounter:  requestCounter,
		RequestDuration: requestDuration,
		ErrorCounter:    errorCounter,
	}, nil
}

// RecordRequest records an HTTP request with method, route, status, and duration.
func (m *ServerMetrics) RecordRequest(ctx context.Context, method, route, status string, durationMs float64) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.String("http.status_code", status),
	)

	m.RequestCounter.Add(ctx, 1, attrs)
	m.RequestDuration.Record(ctx, durationMs, attrs)

	if len(status) > 0 && status[0] == '5' {
		m.ErrorCounter.Add(ctx, 1, attrs)
	}
}

// SecurityMetrics counts authentication and authorization outcomes.
type SecurityMetrics struct {
	LoginCounter   metric.Int64Counter // Login attempts by outcome
	SessionRejects metric.Int64Counter // Bearer tokens rejected by kind
	AuthzDenials   metric.Int64Counter // Policy denials by operation
}

// NewSecurityMetrics creates the security instruments.
func NewSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter("forgeapi/security")

	logins, err := meter.Int64Counter(
		"forge.auth.login.count",
		metric.WithDescription("Login attempts by outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	rejects, err := meter.Int64Counter(
		"forge.auth.session.rejected",
		metric.WithDescription("Bearer tokens rejected during authentication"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, err
	}

	denials, err := meter.Int64Counter(
		"forge.authz.denied",
		metric.WithDescription("Requests denied by the access policy"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &SecurityMetrics{LoginCounter: logins, SessionRejects: rejects, AuthzDenials: denials}, nil
}

// RecordLogin counts a login attempt. outcome is "success" or an error kind.
func (m *SecurityMetrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.LoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordSessionReject counts a rejected bearer token by error kind.
func (m *SecurityMetrics) RecordSessionReject(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.SessionRejects.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrFailureKind, kind)))
}

// RecordDenial counts a policy denial.
func (m *SecurityMetrics) RecordDenial(ctx context.Context, operation, role string) {
	if m == nil {
		return
	}
	m.AuthzDenials.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrOperation, operation),
		attribute.String(AttrUserRole, role),
	))
}
