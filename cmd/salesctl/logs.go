package main

import (
	"fmt"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/deploy"

	"github.com/spf13/cobra"
)

var logsFlags struct {
	config   string
	project  string
	region   string
	service  string
	since    time.Duration
	severity string
	limit    int
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print recent log entries of the deployed service",
	Args:  cobra.NoArgs,
	RunE:  runLogs,
}

func init() {
	f := logsCmd.Flags()
	f.StringVarP(&logsFlags.config, "config", "c", "", "Deploy config yaml to read project and service from")
	f.StringVar(&logsFlags.project, "project", "", "Google Cloud project id")
	f.StringVar(&logsFlags.service, "service", "", "Cloud Run service name")
	f.StringVar(&logsFlags.region, "region", "", "Cloud Run region, defaults to the config region")
	f.DurationVar(&logsFlags.since, "since", time.Hour, "Only show entries newer than this")
	f.StringVar(&logsFlags.severity, "severity", "", "Minimum severity, e.g. WARNING")
	f.IntVarP(&logsFlags.limit, "limit", "n", 50, "Maximum number of entries")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDeployConfig(logsFlags.config)
	if err != nil {
		return err
	}
	if logsFlags.project != "" {
		cfg.Project = logsFlags.project
	}
	if logsFlags.region != "" {
		cfg.Region = logsFlags.region
	}
	if logsFlags.service != "" {
		cfg.Service = logsFlags.service
	}
	if cfg.Project == "" {
		return fmt.Errorf("--project is required")
	}

	ctx := cmd.Context()

	reader, err := deploy.NewLogReader(ctx, cfg.Project)
	if err != nil {
		return err
	}
	defer reader.Close()

	lines, err := reader.Read(ctx, deploy.LogQuery{
		Service:     cfg.Service,
		Region:      cfg.Region,
		Since:       logsFlags.since,
		MinSeverity: logsFlags.severity,
		Limit:       logsFlags.limit,
	})
	if err != nil {
		return err
	}

	// entries arrive newest first
	out := cmd.OutOrStdout()
	for i := len(lines) - 1; i >= 0; i-- {
		fmt.Fprintln(out, lines[i].String())
	}
	return nil
}
