package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
)

var rootCmd = &cobra.Command{
	Use:           "coursegrab",
	Short:         "coursegrab downloads every lecture video of an online course you are enrolled in.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Always log JSON, even on a terminal")
}

// SetVersion sets the version reported by --version.
func SetVersion(version, buildTime string) {
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return 1
	}
	return 0
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger(w io.Writer, level string, forceJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if !forceJSON && isTerminal(w) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
