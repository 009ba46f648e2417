// Package cli provides the command-line entry point for rpcsh.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rpcsh/rpcsh/internal/config"
	"github.com/rpcsh/rpcsh/internal/console"
	"github.com/rpcsh/rpcsh/internal/session"
)

// Version is set at build time.
var Version = "0.1.0"

// App carries state out of the cobra run: the console's exit code.
type App struct {
	ExitCode int
}

// NewRootCmd creates the root command: rpcsh [url | host [port]].
func (a *App) NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "rpcsh [url | host [port]]",
		Short: "Interactive RPC and database console",
		Long: `rpcsh is an interactive console for issuing ad hoc RPC calls and
database queries against live servers. Given a url or a host (port
defaults to 80) it connects a first client at startup; without
arguments it starts with no connections.`,
		Version:       Version,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			a.ExitCode = runConsole(cmd.Context(), cfg, args)
			return nil
		},
	}

	rootCmd.Flags().String("name", "", "console display name")
	rootCmd.Flags().String("charset", "", "input charset label")
	rootCmd.Flags().Int("timeout", 0, "remote call timeout in milliseconds")
	rootCmd.Flags().String("history-file", "", "line history file path")
	rootCmd.Flags().String("rc-file", "", "run-control command file path")
	rootCmd.Flags().BoolP("verbose", "v", false, "verbose logging")

	return rootCmd
}

func runConsole(ctx context.Context, cfg *config.Config, args []string) int {
	logger := slog.New(slog.DiscardHandler)
	if cfg.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}

	sess := session.New(logger)
	sess.Name = cfg.Name
	sess.Charset = cfg.Charset
	sess.Autocommit = cfg.Autocommit
	sess.Autosort = cfg.Autosort
	sess.TimeoutMS = cfg.TimeoutMS

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	con := console.New(sess, cfg, console.WithInteractive(interactive))

	// A startup url/host argument becomes the first client and consumes
	// the first auto-generated name.
	if len(args) > 0 {
		if err := con.Exec(ctx, "connect "+strings.Join(args, " ")); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if !interactive {
				return -1
			}
		}
	}

	return con.Run(ctx)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	app := &App{}
	rootCmd := app.NewRootCmd()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return -1
	}
	return app.ExitCode
}
