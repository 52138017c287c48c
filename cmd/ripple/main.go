package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/charmbracelet/fang"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/vito/ripple/pkg/ioctx"
	"github.com/vito/ripple/pkg/ripple"
)

// Config holds the application configuration
type Config struct {
	Debug  bool
	Dump   bool
	Spans  bool
	Config string
}

func main() {
	var cfg Config

	rootCmd := &cobra.Command{
		Use:   "ripple",
		Short: "Ripple reactive language runtime",
		Long: `Ripple evaluates reactive programs: expressions over streams of
time, keys, pointer movement, chat, speech and scenes. Every stream change
re-evaluates the program step by step.`,
		Example: `  # Evaluate a program once
  ripple run clock.rip

  # Evaluate a program, reacting to input typed on stdin
  ripple live counter.rip

  # Replay recorded input
  ripple replay counter.rip events.yaml`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&cfg.Debug, "debug", "d", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&cfg.Dump, "dump", false, "Dump values structurally instead of displaying them")
	rootCmd.PersistentFlags().BoolVar(&cfg.Spans, "spans", false, "Print a trace span for every evaluation pass")
	rootCmd.PersistentFlags().StringVarP(&cfg.Config, "config", "c", "", "Path to ripple.toml (searched for by default)")

	rootCmd.AddCommand(
		runCmd(&cfg),
		checkCmd(&cfg),
		stepsCmd(&cfg),
		liveCmd(&cfg),
		replayCmd(&cfg),
		debugCmd(&cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = ioctx.StdoutToContext(ctx, os.Stdout)
	ctx = ioctx.StderrToContext(ctx, os.Stderr)
	if err := fang.Execute(ctx, rootCmd,
		fang.WithVersion("v0.1.0"),
		fang.WithCommit("dev"),
		fang.WithErrorHandler(func(w io.Writer, styles fang.Styles, err error) {
			_, _ = fmt.Fprintln(w, errorStyle.Render(err.Error()))
		}),
	); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cfg *Config) {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: level,
	})))
}

// load reads and prepares the program at path, using the nearest
// ripple.toml unless one was given.
func load(cfg *Config, path string, opts ...ripple.Option) (*ripple.Program, error) {
	setupLogging(cfg)

	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var config *ripple.ProjectConfig
	if cfg.Config != "" {
		config, err = ripple.LoadProjectConfig(cfg.Config)
		if err != nil {
			return nil, err
		}
	} else {
		configPath, found, err := ripple.FindProjectConfig(filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		if found != nil {
			slog.Debug("loaded project config", "path", configPath)
			config = found
		}
	}
	if config != nil {
		opts = append([]ripple.Option{ripple.WithConfig(config)}, opts...)
	}
	opts = append(opts, spanOptions(cfg, os.Stderr)...)
	return ripple.Load(string(text), path, opts...)
}

func runCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE",
		Short: "Evaluate a program once and print its value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := load(cfg, args[0])
			if err != nil {
				return err
			}
			defer p.Stop()
			out := ioctx.StdoutFromContext(cmd.Context())
			printConflicts(ioctx.StderrFromContext(cmd.Context()), p)
			result, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			printResult(out, cfg, result)
			if exc, ok := result.Value.(*ripple.Exception); ok {
				return fmt.Errorf("evaluation failed: %s", exc.Kind)
			}
			return nil
		},
	}
}

func checkCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Report a program's conflicts without evaluating it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := load(cfg, args[0])
			if err != nil {
				return err
			}
			n := printConflicts(ioctx.StdoutFromContext(cmd.Context()), p)
			if n > 0 {
				return fmt.Errorf("%d conflicts", n)
			}
			return nil
		},
	}
}

func stepsCmd(cfg *Config) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "steps FILE",
		Short: "Evaluate a program once, printing every step executed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := load(cfg, args[0])
			if err != nil {
				return err
			}
			defer p.Stop()
			p.Config.Evaluation.Trace = true
			result, err := p.Run(cmd.Context())
			if err != nil {
				return err
			}
			out := ioctx.StdoutFromContext(cmd.Context())
			printTrace(out, result.Trace, width)
			printResult(out, cfg, result)
			return nil
		},
	}
	cmd.Flags().IntVarP(&width, "width", "w", 120, "Truncate steps to this many columns (0 for no limit)")
	return cmd
}
