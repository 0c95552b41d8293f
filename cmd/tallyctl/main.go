package main

import (
	"context"
	"os"

	"github.com/jmylchreest/tallyd/cmd/tallyctl/commands"
	"github.com/jmylchreest/tallyd/internal/config"
	"github.com/jmylchreest/tallyd/internal/utils"
	"github.com/jmylchreest/tallyd/pkg/client"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	// Load configuration; a missing client config file just means defaults.
	cfg, err := config.Load(config.ClientConfigFilename, "")
	if err != nil {
		logger := utils.SetupErrorLogger()
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	rootCmd := commands.NewRootCommand(nil, version, commit, buildDate)

	// Parse the persistent flags up front so logging and the socket path
	// can be resolved before any command runs. Execute reparses them.
	fs := rootCmd.PersistentFlags()
	fs.ParseErrorsWhitelist.UnknownFlags = true
	_ = fs.Parse(os.Args[1:])

	// Flags override the config file for logging.
	logLevel := cfg.Logging.Level
	logFormat := cfg.Logging.Format
	if fs.Changed("log-level") {
		logLevel, _ = fs.GetString("log-level")
	}
	if fs.Changed("log-format") {
		logFormat, _ = fs.GetString("log-format")
	}

	logger := utils.SetupLogger(logLevel, logFormat)
	utils.SetAsDefaultLogger(logger)

	// Socket resolution order: flag, config file, runtime default.
	socket := config.GetRuntimeSocketPath()
	if cfg.Server.UnixSocket != "" {
		socket = cfg.Server.UnixSocket
	}
	if socketFlag, _ := fs.GetString("socket"); socketFlag != "" {
		socket = socketFlag
	}

	apiClient := client.New(logger, socket)

	ctx := commands.ContextWithLogger(context.Background(), logger)
	ctx = context.WithValue(ctx, commands.ClientContextKey, apiClient)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
