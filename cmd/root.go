// Package cmd provides the Cobra CLI for meshtun.
package cmd

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/net2share/go-corelib/tui"
	"github.com/net2share/meshtun/internal/handlers"
	"github.com/net2share/meshtun/internal/logging"
	"github.com/net2share/meshtun/internal/menu"
	"github.com/spf13/cobra"
)

// Version and BuildTime are set at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var (
	logLevel string
	logger   = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "meshtun",
	Short: "Yggdrasil Mesh Tunnel",
	Long:  "Yggdrasil Mesh Tunnel - https://github.com/net2share/meshtun",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = newLogger(logLevel)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		menu.Version = Version
		menu.BuildTime = BuildTime
		tui.SetAppInfo("meshtun", Version, BuildTime)
		tui.BeginSession()
		defer tui.EndSession()

		return menu.RunInteractive(cmd.Context(), logger)
	},
}

// newLogger writes to stderr, colored when stderr is a terminal.
func newLogger(level string) *slog.Logger {
	color := isatty.IsTerminal(os.Stderr.Fd())
	return logging.New(os.Stderr, logging.ParseLevel(level), color)
}

func init() {
	rootCmd.Version = Version
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn",
		"Log level: trace, debug, info, warn, error, off")

	// Register all action-based commands
	RegisterActionsWithRoot(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersionInfo sets version information for the CLI.
func SetVersionInfo(version, buildTime string) {
	Version = version
	BuildTime = buildTime
	handlers.AppVersion = version
	rootCmd.Version = version + " (built " + buildTime + ")"
}
