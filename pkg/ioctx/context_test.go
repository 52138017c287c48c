package ioctx

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestWriters(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, io.Discard, StdoutFromContext(ctx))
	assert.Equal(t, io.Discard, StderrFromContext(ctx))

	var out, errs bytes.Buffer
	ctx = StdoutToContext(ctx, &out)
	ctx = StderrToContext(ctx, &errs)
	assert.Same(t, &out, StdoutFromContext(ctx))
	assert.Same(t, &errs, StderrFromContext(ctx))
}

func TestClock(t *testing.T) {
	ctx := context.Background()
	assert.NotNil(t, ClockFromContext(ctx))

	fake := clockwork.NewFakeClock()
	assert.Same(t, fake, ClockFromContext(ClockToContext(ctx, fake)))
}
