package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

type AuthMode string

const (
	AuthPublic         AuthMode = "public"
	AuthAuthenticated  AuthMode = "authenticated"
	AuthServiceAccount AuthMode = "service-account"
)

// ApiKeyConfig is either a literal key or a Secret Manager secret. When both
// are set the secret wins.
type ApiKeyConfig struct {
	Value         string `yaml:"value,omitempty"`
	Secret        string `yaml:"secret,omitempty"`
	SecretVersion string `yaml:"secret_version,omitempty"`
}

type DeployConfig struct {
	Project   string `yaml:"project"`
	Region    string `yaml:"region"`
	Service   string `yaml:"service"`
	Image     string `yaml:"image"`
	SourceDir string `yaml:"source_dir"`
	// Dockerfile path relative to SourceDir.
	Dockerfile    string   `yaml:"dockerfile"`
	StagingBucket string   `yaml:"staging_bucket"`
	Excludes      []string `yaml:"excludes"`

	Memory       string        `yaml:"memory"`
	Cpu          string        `yaml:"cpu"`
	Timeout      time.Duration `yaml:"timeout"`
	MinInstances int32         `yaml:"min_instances"`
	MaxInstances int32         `yaml:"max_instances"`
	Concurrency  int32         `yaml:"concurrency"`
	Port         int32         `yaml:"port"`

	Auth           AuthMode `yaml:"auth"`
	ServiceAccount string   `yaml:"service_account"`
	Invokers       []string `yaml:"invokers"`

	ApiKey   ApiKeyConfig      `yaml:"api_key"`
	LogLevel string            `yaml:"log_level"`
	Env      map[string]string `yaml:"env"`
}

func DefaultDeployConfig() DeployConfig {
	return DeployConfig{
		Region:       "us-central1",
		Service:      "sales-intelligence-api",
		SourceDir:    ".",
		Dockerfile:   "Dockerfile",
		Excludes:     []string{".git", "_examples", "*.db"},
		Memory:       "2Gi",
		Cpu:          "1",
		Timeout:      600 * time.Second,
		MinInstances: 0,
		MaxInstances: 10,
		Concurrency:  80,
		Port:         8080,
		Auth:         AuthPublic,
		LogLevel:     "INFO",
	}
}

// LoadDeployConfig reads a yaml file on top of DefaultDeployConfig. An empty
// path returns the defaults.
func LoadDeployConfig(path string) (DeployConfig, error) {
	cfg := DefaultDeployConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error reading deploy config %v: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("error parsing deploy config %v: %w", path, err)
	}

	return cfg, nil
}

func (c *DeployConfig) ImageName() string {
	if c.Image != "" {
		return c.Image
	}
	return fmt.Sprintf("gcr.io/%s/%s", c.Project, c.Service)
}

func (c *DeployConfig) Bucket() string {
	if c.StagingBucket != "" {
		return c.StagingBucket
	}
	return c.Project + "_cloudbuild"
}

func (c *DeployConfig) Parent() string {
	return fmt.Sprintf("projects/%s/locations/%s", c.Project, c.Region)
}

func (c *DeployConfig) ServiceName() string {
	return fmt.Sprintf("%s/services/%s", c.Parent(), c.Service)
}

var serviceNameRe = regexp.MustCompile(`^[a-z]([-a-z0-9]{0,47}[a-z0-9])?$`)

var memoryRe = regexp.MustCompile(`^[0-9]+(Mi|Gi)$`)

func (c *DeployConfig) Validate() error {
	var errs []error

	if c.Project == "" {
		errs = append(errs, errors.New("project is required"))
	}
	if c.Region == "" {
		errs = append(errs, errors.New("region is required"))
	}
	if !serviceNameRe.MatchString(c.Service) {
		errs = append(errs, fmt.Errorf("invalid service name '%v'", c.Service))
	}
	if !memoryRe.MatchString(c.Memory) {
		errs = append(errs, fmt.Errorf("invalid memory limit '%v'", c.Memory))
	}
	if c.Cpu == "" {
		errs = append(errs, errors.New("cpu is required"))
	}
	if c.Timeout <= 0 || c.Timeout > time.Hour {
		errs = append(errs, fmt.Errorf("timeout must be in (0s, 1h], got %v", c.Timeout))
	}
	if c.MinInstances < 0 || c.MaxInstances < 1 || c.MinInstances > c.MaxInstances {
		errs = append(errs, fmt.Errorf("invalid instance bounds [%d, %d]", c.MinInstances, c.MaxInstances))
	}
	if c.Concurrency < 1 || c.Concurrency > 1000 {
		errs = append(errs, fmt.Errorf("concurrency must be in [1, 1000], got %d", c.Concurrency))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}

	switch c.Auth {
	case AuthPublic, AuthAuthenticated:
	case AuthServiceAccount:
		if c.ServiceAccount == "" {
			errs = append(errs, errors.New("service_account is required when auth is service-account"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth mode '%v'", c.Auth))
	}

	for key := range c.Env {
		if key == "PROJECT_ID" || key == "API_KEY" || key == "LOG_LEVEL" || key == "PORT" {
			errs = append(errs, fmt.Errorf("env var %v is managed by the deployer", key))
		}
	}

	return errors.Join(errs...)
}
