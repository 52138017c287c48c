package main

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/vito/ripple/pkg/ripple"
)

// spanPrinter writes finished pass spans as dim lines after each result.
type spanPrinter struct {
	w io.Writer
}

var _ sdktrace.SpanExporter = spanPrinter{}

func (e spanPrinter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		line := fmt.Sprintf("%s %s", span.Name(), span.EndTime().Sub(span.StartTime()))
		for _, attr := range span.Attributes() {
			line += fmt.Sprintf(" %s=%s", attr.Key, attr.Value.Emit())
		}
		if span.Status().Code == codes.Error {
			line += " " + errorStyle.Render(span.Status().Description)
		}
		if _, err := fmt.Fprintln(e.w, dimStyle.Render(line)); err != nil {
			return err
		}
	}
	return nil
}

func (e spanPrinter) Shutdown(ctx context.Context) error { return nil }

// spanOptions traces passes with a provider printing each span to w as
// soon as it ends, when requested.
func spanOptions(cfg *Config, w io.Writer) []ripple.Option {
	if !cfg.Spans {
		return nil
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(spanPrinter{w}),
	)
	return []ripple.Option{ripple.WithTracerProvider(tp)}
}
