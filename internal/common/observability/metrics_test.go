package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilObservabilityIsSafe(t *testing.T) {
	var o *Observability
	ctx, span := o.StartSpan(context.Background(), "noop")
	assert.NotNil(t, ctx)
	span.End()

	o.RecordSession(ctx, "complete", time.Second)
	o.RecordCommit(ctx, "assign", "ok")
	o.Shutdown()
}
