package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/ripple/pkg/ripple"
)

func TestPrintResult(t *testing.T) {
	p, err := ripple.Load("1 + 1", "test.rip")
	require.NoError(t, err)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	printResult(&buf, &Config{}, result)
	assert.Equal(t, "2 (6 steps)\n", ansi.Strip(buf.String()))
}

func TestPrintException(t *testing.T) {
	p, err := ripple.Load("1 ÷ 0", "test.rip")
	require.NoError(t, err)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	printResult(&buf, &Config{}, result)
	assert.True(t, strings.HasPrefix(ansi.Strip(buf.String()), string(ripple.DivisionByZero)+": "))
}

func TestPrintConflicts(t *testing.T) {
	p, err := ripple.Load("y + 1", "test.rip")
	require.NoError(t, err)

	var buf bytes.Buffer
	assert.Positive(t, printConflicts(&buf, p))
	assert.Contains(t, ansi.Strip(buf.String()), "conflict:")
}

func TestPrintTraceTruncates(t *testing.T) {
	p, err := ripple.Load("'a long piece of text' + 'and another long piece of text'", "test.rip")
	require.NoError(t, err)
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	printTrace(&buf, result.Trace, 20)
	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		// kind column, a space, then the truncated entry
		assert.LessOrEqual(t, ansi.StringWidth(line), 8+1+20, line)
	}
}

func TestDeliverLine(t *testing.T) {
	p, err := ripple.Load("[Key() Chat()]", "test.rip")
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	ctx := context.Background()
	_, err = p.Run(ctx)
	require.NoError(t, err)

	deliverLine(p, "Chat hello there")
	deliverLine(p, "q")
	results, err := p.Flush(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "['' ['hello there']]", results[0].Value.String())
	assert.Equal(t, "['q' ['hello there']]", results[1].Value.String())
}

func TestReadEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- at: 1s\n  stream: Time\n- stream: Key\n  raw: a\n"), 0o644))

	events, err := readEvents(path)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "Time", events[0].Stream)
	assert.Equal(t, "a", events[1].Raw)

	_, err = readEvents(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := ripple.Load("1 + 1", "test.rip", spanOptions(&Config{Spans: true}, &buf)...)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	out := ansi.Strip(buf.String())
	assert.True(t, strings.HasPrefix(out, "pass "), out)
	assert.Contains(t, out, "ripple.trigger=initial")
	assert.Contains(t, out, "ripple.steps=6")

	assert.Empty(t, spanOptions(&Config{}, &buf))
}
