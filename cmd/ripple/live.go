package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/creachadair/jrpc2/channel"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vito/ripple/pkg/debugger"
	"github.com/vito/ripple/pkg/ioctx"
	"github.com/vito/ripple/pkg/ripple"
)

func liveCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "live FILE",
		Short: "Run a program, feeding it input typed on stdin",
		Long: `Run a program until interrupted, printing its value after every pass.

Each line of stdin is delivered as input. A line of the form "Stream text"
is delivered to every stream of that kind, e.g. "Chat hello". "done NAME"
completes the scene animation NAME. Any other line is delivered to Key.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := load(cfg, args[0])
			if err != nil {
				return err
			}
			out := ioctx.StdoutFromContext(cmd.Context())
			p.OnResult(func(result ripple.Result) {
				printResult(out, cfg, result)
			})
			if _, err := p.Run(cmd.Context()); err != nil {
				return err
			}
			return p.Serve(cmd.Context(), stdinDriver(os.Stdin))
		},
	}
}

func stdinDriver(in io.Reader) ripple.Driver {
	return func(ctx context.Context, p *ripple.Program) error {
		lines := make(chan string)
		go func() {
			defer close(lines)
			scanner := bufio.NewScanner(in)
			for scanner.Scan() {
				lines <- scanner.Text()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-lines:
				if !ok {
					<-ctx.Done()
					return nil
				}
				deliverLine(p, line)
			}
		}
	}
}

var lineStreams = map[string]bool{
	"Key":    true,
	"Choice": true,
	"Chat":   true,
	"Speech": true,
}

func deliverLine(p *ripple.Program, line string) {
	kind, rest, found := strings.Cut(line, " ")
	switch {
	case found && kind == "done":
		p.AnimationDone(rest)
	case found && lineStreams[kind]:
		p.Deliver(kind, rest)
	default:
		p.Deliver("Key", line)
	}
}

func replayCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "replay FILE EVENTS",
		Short: "Replay recorded input against a program",
		Long: `Replay a YAML list of recorded events against a program on a
simulated clock, printing the value of every pass. Each event names a
stream and its raw input:

  - at: 100ms
    stream: Time
  - stream: Key
    raw: a
  - stream: Animation
    raw: fadeIn`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := load(cfg, args[0], ripple.WithClock(clockwork.NewFakeClock()))
			if err != nil {
				return err
			}
			defer p.Stop()
			events, err := readEvents(args[1])
			if err != nil {
				return err
			}
			results, err := p.Replay(cmd.Context(), events)
			out := ioctx.StdoutFromContext(cmd.Context())
			for _, result := range results {
				printResult(out, cfg, result)
			}
			return err
		},
	}
}

func readEvents(path string) ([]ripple.RecordedEvent, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	var events []ripple.RecordedEvent
	if err := yaml.Unmarshal(content, &events); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return events, nil
}

func debugCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "debug FILE",
		Short: "Serve step-by-step control of a program as JSON-RPC on stdio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := load(cfg, args[0])
			if err != nil {
				return err
			}
			defer p.Stop()
			if _, err := p.Run(cmd.Context()); err != nil {
				return err
			}
			srv := debugger.NewSession(p).NewServer()
			srv.Start(channel.Line(os.Stdin, os.Stdout))
			go func() {
				<-cmd.Context().Done()
				srv.Stop()
			}()
			return srv.Wait()
		},
	}
}
