package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logLevel   string
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "mcp-server-box",
	Short: "Box Model Context Protocol (MCP) Server",
	Long: `The MCP server gives AI agents access to Box, authenticating to Box with
OAuth, Client Credentials Grant, JWT or the MCP client's own token.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogger()
	},
}

// Execute runs the root command
func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Set the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to an optional YAML configuration file")
}

func initLogger() {
	zap.ReplaceGlobals(newLogger(logLevel))
}

// newLogger builds the process logger. Both configurations write to stderr,
// which keeps stdout free for the stdio transport.
func newLogger(level string) *zap.Logger {
	if strings.ToLower(level) == "debug" {
		return zap.Must(zap.NewDevelopment())
	}

	config := zap.NewProductionConfig()
	// remove the "caller" key from the log output
	config.EncoderConfig.CallerKey = zapcore.OmitKey
	if lvl, err := zapcore.ParseLevel(level); err == nil && level != "" {
		config.Level = zap.NewAtomicLevelAt(lvl)
	}
	return zap.Must(config.Build())
}
