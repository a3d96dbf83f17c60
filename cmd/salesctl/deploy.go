package main

import (
	"fmt"
	"strings"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/deploy"

	"github.com/spf13/cobra"
)

var deployFlags struct {
	config string
	image  string
	skip   bool
	env    []string
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build the service image and deploy it to Cloud Run",
	Long: `Runs the deployment steps in order: select the project, build the image with
Cloud Build, deploy the Cloud Run service, read its URL and print usage
instructions. The first failing step aborts the deployment.`,
	Args: cobra.NoArgs,
	RunE: runDeploy,
}

func init() {
	f := deployCmd.Flags()
	f.StringVarP(&deployFlags.config, "config", "c", "", "Deploy config yaml; flags override its values")
	f.BoolVar(&deployFlags.skip, "skip-build", false, "Deploy --image as is instead of building from source")
	f.StringArrayVar(&deployFlags.env, "env", nil, "Extra service env var as KEY=VALUE, may be repeated")

	f.String("project", "", "Google Cloud project id")
	f.String("region", "", "Cloud Run region")
	f.String("service", "", "Cloud Run service name")
	f.StringVar(&deployFlags.image, "image", "", "Image repository, or the full image reference with --skip-build")
	f.String("source", "", "Source directory to build")
	f.String("memory", "", "Memory limit, e.g. 2Gi")
	f.String("cpu", "", "CPU limit")
	f.Duration("timeout", 0, "Request timeout")
	f.Int32("min-instances", 0, "Minimum instances")
	f.Int32("max-instances", 0, "Maximum instances")
	f.Int32("concurrency", 0, "Maximum concurrent requests per instance")
	f.String("auth", "", "Access mode: public, authenticated or service-account")
	f.String("service-account", "", "Runtime service account")
	f.StringSlice("invoker", nil, "Members allowed to invoke the service in service-account mode")
	f.String("api-key", "", "API key value passed to the service")
	f.String("api-key-secret", "", "Secret Manager secret holding the API key")
	f.String("service-log-level", "", "LOG_LEVEL of the deployed service")
}

func applyDeployFlags(cmd *cobra.Command, cfg *config.DeployConfig) error {
	f := cmd.Flags()

	strs := map[string]*string{
		"project":           &cfg.Project,
		"region":            &cfg.Region,
		"service":           &cfg.Service,
		"image":             &cfg.Image,
		"source":            &cfg.SourceDir,
		"memory":            &cfg.Memory,
		"cpu":               &cfg.Cpu,
		"service-account":   &cfg.ServiceAccount,
		"api-key":           &cfg.ApiKey.Value,
		"api-key-secret":    &cfg.ApiKey.Secret,
		"service-log-level": &cfg.LogLevel,
	}
	for name, dest := range strs {
		if f.Changed(name) {
			*dest, _ = f.GetString(name)
		}
	}

	ints := map[string]*int32{
		"min-instances": &cfg.MinInstances,
		"max-instances": &cfg.MaxInstances,
		"concurrency":   &cfg.Concurrency,
	}
	for name, dest := range ints {
		if f.Changed(name) {
			*dest, _ = f.GetInt32(name)
		}
	}

	if f.Changed("timeout") {
		cfg.Timeout, _ = f.GetDuration("timeout")
	}
	if f.Changed("auth") {
		auth, _ := f.GetString("auth")
		cfg.Auth = config.AuthMode(auth)
	}
	if f.Changed("invoker") {
		cfg.Invokers, _ = f.GetStringSlice("invoker")
	}

	for _, kv := range deployFlags.env {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --env value '%v', expected KEY=VALUE", kv)
		}
		if cfg.Env == nil {
			cfg.Env = map[string]string{}
		}
		cfg.Env[key] = value
	}

	return nil
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadDeployConfig(deployFlags.config)
	if err != nil {
		return err
	}
	if err := applyDeployFlags(cmd, &cfg); err != nil {
		return err
	}

	ctx := cmd.Context()

	var builder deploy.ImageBuilder
	if deployFlags.skip {
		builder = deploy.PrebuiltImage(cfg.Image)
	} else {
		cloudBuilder, err := deploy.NewCloudBuilder(ctx)
		if err != nil {
			return err
		}
		defer cloudBuilder.Close()
		builder = cloudBuilder
	}

	deployer, err := deploy.NewCloudRunDeployer(ctx)
	if err != nil {
		return err
	}
	defer deployer.Close()

	pipeline := &deploy.Pipeline{Builder: builder, Deployer: deployer}

	result, err := pipeline.Run(ctx, cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.Instructions)
	return nil
}
