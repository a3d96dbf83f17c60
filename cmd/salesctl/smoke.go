package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/client"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/deploy"

	"github.com/spf13/cobra"
)

type targetFlags struct {
	url    string
	apiKey string
	config string
}

func (t *targetFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&t.url, "url", "", "Service URL; looked up from Cloud Run when empty")
	f.StringVar(&t.apiKey, "api-key", os.Getenv("API_KEY"), "API key sent as X-API-KEY (default $API_KEY)")
	f.StringVarP(&t.config, "config", "c", "", "Deploy config yaml used to look up the service URL")
}

func (t *targetFlags) client(ctx context.Context) (*client.SalesIntelClient, error) {
	url := t.url
	if url == "" {
		cfg, err := config.LoadDeployConfig(t.config)
		if err != nil {
			return nil, err
		}
		if cfg.Project == "" {
			return nil, fmt.Errorf("either --url or a config with a project is required")
		}

		deployer, err := deploy.NewCloudRunDeployer(ctx)
		if err != nil {
			return nil, err
		}
		defer deployer.Close()

		url, err = deployer.ServiceUrl(ctx, cfg)
		if err != nil {
			return nil, err
		}
		slog.Info("resolved service url", "url", url)
	}
	return client.New(url, t.apiKey), nil
}

var smokeTarget targetFlags

var smokeAnalyze bool

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Run the post deploy acceptance checks against the service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c, err := smokeTarget.client(ctx)
		if err != nil {
			return err
		}

		if err := deploy.Smoke(ctx, c, deploy.SmokeOptions{Analyze: smokeAnalyze}); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "smoke test passed")
		return nil
	},
}

func init() {
	smokeTarget.register(smokeCmd)
	smokeCmd.Flags().BoolVar(&smokeAnalyze, "analyze", false, "Also run a full analysis of the sample company")
}
