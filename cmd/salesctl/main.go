package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"

	"github.com/spf13/cobra"
)

var (
	logLevel string
	logFile  string
)

var rootCmd = &cobra.Command{
	Use:           "salesctl",
	Short:         "Deploy and operate the Sales Intelligence API on Cloud Run",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogFile()
	},
}

var openedLogFile *os.File

func initLogging(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	if logFile == "" {
		logging.InitLogging(cmd.ErrOrStderr(), level, "text", "salesctl")
		return nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error opening log file: %w", err)
	}
	openedLogFile = f

	logging.InitLogging(cmd.ErrOrStderr(), level, "text", "salesctl", logging.NewHandler(f, "json", level))
	return nil
}

func closeLogFile() {
	if openedLogFile != nil {
		openedLogFile.Close()
		openedLogFile = nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level: DEBUG, INFO, WARNING or ERROR")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also append json logs to this file")

	rootCmd.AddCommand(deployCmd, logsCmd, smokeCmd, analyzeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		closeLogFile()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
