package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/skobkin/d7logger/internal/app"
	"github.com/skobkin/d7logger/internal/config"
	"github.com/skobkin/d7logger/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("run d7logger", "error", err)
		stop()
		os.Exit(1)
	}
}

type rootOptions struct {
	configFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "d7logger [serial-port]",
		Short: "DASH7 logger for the OSS-7 stack",
		Long: `d7logger reads the binary log stream of an OSS-7 device, decodes its
frames and shows them live. Records can also be written to a log file, a pcap
capture, a named pipe for a live packet analyzer and a sqlite archive.

Press Ctrl-C to stop; queued records are flushed before exit.`,
		Version:       app.BuildVersionWithDate(),
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogger(cmd, args, opts)
		},
	}

	cmd.SetVersionTemplate(app.VersionLine())
	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is the user config dir)")
	config.RegisterFlags(cmd.Flags(), config.Default())
	cmd.AddCommand(newPortsCmd(), newArchiveCmd())

	return cmd
}

func runLogger(cmd *cobra.Command, args []string, opts *rootOptions) error {
	if len(args) == 1 {
		if err := cmd.Flags().Set("port", args[0]); err != nil {
			return fmt.Errorf("set serial port: %w", err)
		}
	}

	settings, err := config.Load(configPath(opts), cmd.Flags(), time.Now())
	if err != nil {
		return err
	}

	logMgr := logging.NewManager(cmd.ErrOrStderr())
	if err := logMgr.Configure(settings.Log); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()

	out, color := consoleOutput(cmd, settings.Color)
	rt, err := app.New(settings, app.Options{Stdout: out, Color: color, LogManager: logMgr})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%s %s reading %s, press Ctrl-C to stop\n", app.Name, app.BuildVersion(), settings.Source())
	if settings.Persisting() {
		fmt.Fprintf(cmd.ErrOrStderr(), "writing %s and %s\n", settings.RecordLogPath(), settings.CapturePath())
	}
	runErr := rt.Run(cmd.Context())
	fmt.Fprintln(cmd.ErrOrStderr(), rt.Summary())

	return runErr
}

// configPath prefers --config, then an existing user config file.
func configPath(opts *rootOptions) string {
	if opts.configFile != "" {
		return opts.configFile
	}
	paths, err := app.ResolvePaths()
	if err != nil {
		slog.Debug("resolve paths", "error", err)
		return ""
	}

	return paths.ExistingConfigFile()
}

// consoleOutput returns the live view writer and whether to style it. Styling
// in auto mode is on only for a real terminal.
func consoleOutput(cmd *cobra.Command, mode config.ColorMode) (io.Writer, bool) {
	out := cmd.OutOrStdout()
	tty := false
	if f, ok := out.(*os.File); ok && f == os.Stdout {
		fd := f.Fd()
		tty = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
		out = colorable.NewColorableStdout()
	}

	switch mode {
	case config.ColorAlways:
		return out, true
	case config.ColorNever:
		return out, false
	default:
		return out, tty
	}
}
