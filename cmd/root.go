package cmd

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/jon4hz/photomirror/config"
	"github.com/jon4hz/photomirror/engine"
	"github.com/spf13/cobra"
)

var rootCmdPersistentFlags struct {
	ConfigFile string
	LogFile    string
	LogLevel   string
	Identities []string
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootCmdPersistentFlags.ConfigFile, "config", "c", "", "Path to config file (default: search for config.yml in current dir, ~/.config/photomirror, /etc/photomirror)")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogFile, "log-file", "", "File to write logs to")
	rootCmd.PersistentFlags().StringVar(&rootCmdPersistentFlags.LogLevel, "log-level", "", "Log level (debug, info, warn, error) - overrides config file setting")
	rootCmd.PersistentFlags().StringSliceVarP(&rootCmdPersistentFlags.Identities, "identity", "i", nil, "Identities to operate on (default: all configured identities)")
}

var rootCmd = &cobra.Command{
	Use:   "photomirror",
	Short: "Photomirror keeps a local, browsable mirror of remote photo libraries",
	Long: `Photomirror incrementally indexes remote photo libraries into a local catalog,
downloads media items into a date-based directory layout and mirrors albums as
directories of links. The remote library is never modified.`,
	Example: `  photomirror sync --config config.yml
  photomirror index --rescan -i personal
  photomirror stats`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

// loadConfig loads the config file and applies the logging flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if rootCmdPersistentFlags.LogLevel != "" {
		level = rootCmdPersistentFlags.LogLevel
	}
	setLogLevel(level)
	logToFile()

	return cfg, nil
}

func newManager(cfg *config.Config) (*engine.Manager, error) {
	return engine.NewManager(cfg, log.Default(), rootCmdPersistentFlags.Identities)
}

func setLogLevel(level string) {
	switch level {
	case "", "info":
		log.SetLevel(log.InfoLevel)
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("unknown log level %s, defaulting to info", level)
		log.SetLevel(log.InfoLevel)
	}
}

func logToFile() {
	if rootCmdPersistentFlags.LogFile == "" {
		return
	}
	file, err := os.OpenFile(rootCmdPersistentFlags.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		log.Errorf("failed to open log file: %v", err)
		return
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
}

// Execute runs the CLI until completion or an interrupt.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return fang.Execute(ctx, rootCmd)
}
