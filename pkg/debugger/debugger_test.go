package debugger

import (
	"context"
	"testing"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vito/ripple/pkg/ripple"
)

func connect(t *testing.T, source string) *jrpc2.Client {
	t.Helper()
	p, err := ripple.Load(source, "test.rip")
	require.NoError(t, err)
	t.Cleanup(p.Stop)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	cch, sch := channel.Direct()
	srv := NewSession(p).NewServer().Start(sch)
	cli := jrpc2.NewClient(cch, nil)
	t.Cleanup(func() {
		cli.Close()
		srv.Stop()
	})
	return cli
}

func TestStepping(t *testing.T) {
	ctx := context.Background()
	cli := connect(t, "1 + 1")

	var st State
	require.NoError(t, cli.CallResult(ctx, "Debug.State", nil, &st))
	assert.Equal(t, 0, st.Count)
	assert.False(t, st.Done)
	assert.NotEmpty(t, st.Next)

	require.NoError(t, cli.CallResult(ctx, "Debug.Step", nil, &st))
	assert.Equal(t, 1, st.Count)

	require.NoError(t, cli.CallResult(ctx, "Debug.StepTo", StepToParams{Count: 5}, &st))
	assert.Equal(t, 5, st.Count)
	assert.Equal(t, []string{"2"}, st.Values)

	var frames []Frame
	require.NoError(t, cli.CallResult(ctx, "Debug.Stack", nil, &frames))
	require.Len(t, frames, 1)

	require.NoError(t, cli.CallResult(ctx, "Debug.Finish", nil, &st))
	assert.True(t, st.Done)
	assert.Equal(t, "2", st.Result)
	assert.Equal(t, 6, st.Count)

	require.NoError(t, cli.CallResult(ctx, "Debug.StepBack", nil, &st))
	assert.False(t, st.Done)
	assert.Equal(t, 5, st.Count)
}

func TestStepToRejectsNegativeCounts(t *testing.T) {
	cli := connect(t, "1")
	var st State
	err := cli.CallResult(context.Background(), "Debug.StepTo", StepToParams{Count: -1}, &st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count must not be negative")
}

func TestReact(t *testing.T) {
	ctx := context.Background()
	cli := connect(t, "Key()")

	var res ReactResult
	require.NoError(t, cli.CallResult(ctx, "Debug.React", ReactParams{Stream: "Key", Raw: "a"}, &res))
	assert.Equal(t, 1, res.Accepted)
	assert.Equal(t, []string{"'a'"}, res.Results)

	var st State
	require.NoError(t, cli.CallResult(ctx, "Debug.State", nil, &st))
	assert.Equal(t, 0, st.Count, "a reaction pauses at the start of its pass")

	require.NoError(t, cli.CallResult(ctx, "Debug.Finish", nil, &st))
	assert.Equal(t, "'a'", st.Result)

	err := cli.CallResult(ctx, "Debug.React", ReactParams{}, &res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing stream")
}

func TestFrameNames(t *testing.T) {
	f := Frame{Bindings: map[string]string{"b": "2", "a": "1"}}
	assert.Equal(t, []string{"a", "b"}, f.Names())
}
