package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pixelforge/forge/internal/config"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), config.ObservabilityConfig{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestMetrics_NoopProvider(t *testing.T) {
	ctx := context.Background()

	server, err := NewServerMetrics()
	require.NoError(t, err)
	server.RecordRequest(ctx, "GET", "/api/projects/all", "200", 12.5)
	server.RecordRequest(ctx, "POST", "/api/projects/assign", "500", 3)

	security, err := NewSecurityMetrics()
	require.NoError(t, err)
	security.RecordLogin(ctx, "success")
	security.RecordSessionReject(ctx, "SessionExpired")
	security.RecordDenial(ctx, "project:create", "Developer")

	var nilMetrics *SecurityMetrics
	nilMetrics.RecordLogin(ctx, "ignored")
}

func TestSpans(t *testing.T) {
	ctx, span := StartSpan(context.Background(), TracerProjects, "project.Test")
	defer span.End()
	assert.NotNil(t, ctx)

	AddEvent(span, "checked")
	RecordError(span, errors.New("boom"))
	RecordError(span, nil)
}
