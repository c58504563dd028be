package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixelforge/forge/internal/domain"
	"github.com/pixelforge/forge/internal/repository"
	"github.com/pixelforge/forge/internal/telemetry"
)

// RetryPolicy bounds how often a write that lost an optimistic version check is
// replayed. Attempt n waits Backoff*n before running.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is used when a service is built without an explicit policy.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 5, Backoff: 10 * time.Millisecond}

// run calls fn until it succeeds, fails with something other than a version
// conflict, or the attempts run out. Exhausted retries surface as a persistence error.
func (p RetryPolicy) run(ctx context.Context, span trace.Span, op string, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if !errors.Is(err, repository.ErrVersionConflict) {
			return err
		}
		telemetry.AddEvent(span, "version conflict", attribute.Int(telemetry.AttrAttempt, attempt))
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(p.Backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return domain.Persistence(op, ctx.Err())
		case <-timer.C:
		}
	}
	return domain.Persistence(op, fmt.Errorf("gave up after %d attempts: %w", attempts, err))
}
