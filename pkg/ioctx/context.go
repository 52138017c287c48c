package ioctx

import (
	"context"
	"io"

	"github.com/jonboulle/clockwork"
)

type stdoutKey struct{}
type stderrKey struct{}

func StderrFromContext(ctx context.Context) io.Writer {
	logger := ctx.Value(stderrKey{})
	if logger == nil {
		logger = io.Discard
	}

	return logger.(io.Writer)
}

func StderrToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stderrKey{}, w)
}

func StdoutFromContext(ctx context.Context) io.Writer {
	writer := ctx.Value(stdoutKey{})
	if writer == nil {
		writer = io.Discard
	}

	return writer.(io.Writer)
}

func StdoutToContext(ctx context.Context, w io.Writer) context.Context {
	return context.WithValue(ctx, stdoutKey{}, w)
}

type clockKey struct{}

// ClockFromContext returns the clock streams schedule their timers on,
// defaulting to the real clock.
func ClockFromContext(ctx context.Context) clockwork.Clock {
	clock, ok := ctx.Value(clockKey{}).(clockwork.Clock)
	if !ok {
		return clockwork.NewRealClock()
	}
	return clock
}

func ClockToContext(ctx context.Context, clock clockwork.Clock) context.Context {
	return context.WithValue(ctx, clockKey{}, clock)
}
