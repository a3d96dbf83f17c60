package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"

	"cloud.google.com/go/iam/apiv1/iampb"
	run "cloud.google.com/go/run/apiv2"
	"cloud.google.com/go/run/apiv2/runpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/durationpb"
)

const (
	invokerRole            = "roles/run.invoker"
	allUsers               = "allUsers"
	allAuthenticatedUsers  = "allAuthenticatedUsers"
	containerName          = "sales-intel"
	managedByLabel         = "managed-by"
	managedByLabelValue    = "salesctl"
	defaultSecretVersion   = "latest"
	healthCheckPath        = "/health"
	startupFailureAttempts = 6
)

// ServiceDeployer rolls out an image as the configured Cloud Run service.
type ServiceDeployer interface {
	Deploy(ctx context.Context, cfg config.DeployConfig, image string) error
	ServiceUrl(ctx context.Context, cfg config.DeployConfig) (string, error)
}

type CloudRunDeployer struct {
	services *run.ServicesClient
}

func NewCloudRunDeployer(ctx context.Context, opts ...option.ClientOption) (*CloudRunDeployer, error) {
	client, err := run.NewServicesClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating cloud run client: %w", err)
	}
	return &CloudRunDeployer{services: client}, nil
}

func (d *CloudRunDeployer) Close() error {
	return d.services.Close()
}

func envVars(cfg config.DeployConfig) []*runpb.EnvVar {
	vars := []*runpb.EnvVar{
		{Name: "PROJECT_ID", Values: &runpb.EnvVar_Value{Value: cfg.Project}},
	}

	switch {
	case cfg.ApiKey.Secret != "":
		version := cfg.ApiKey.SecretVersion
		if version == "" {
			version = defaultSecretVersion
		}
		vars = append(vars, &runpb.EnvVar{
			Name: "API_KEY",
			Values: &runpb.EnvVar_ValueSource{ValueSource: &runpb.EnvVarSource{
				SecretKeyRef: &runpb.SecretKeySelector{Secret: cfg.ApiKey.Secret, Version: version},
			}},
		})
	case cfg.ApiKey.Value != "":
		vars = append(vars, &runpb.EnvVar{Name: "API_KEY", Values: &runpb.EnvVar_Value{Value: cfg.ApiKey.Value}})
	}

	vars = append(vars, &runpb.EnvVar{Name: "LOG_LEVEL", Values: &runpb.EnvVar_Value{Value: cfg.LogLevel}})

	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		vars = append(vars, &runpb.EnvVar{Name: k, Values: &runpb.EnvVar_Value{Value: cfg.Env[k]}})
	}

	return vars
}

// ServiceSpec is the Cloud Run service definition for cfg running image.
func ServiceSpec(cfg config.DeployConfig, image string) *runpb.Service {
	container := &runpb.Container{
		Name:  containerName,
		Image: image,
		Env:   envVars(cfg),
		Resources: &runpb.ResourceRequirements{
			Limits: map[string]string{
				"cpu":    cfg.Cpu,
				"memory": cfg.Memory,
			},
			CpuIdle: true,
		},
		Ports: []*runpb.ContainerPort{
			{Name: "http1", ContainerPort: cfg.Port},
		},
		StartupProbe: &runpb.Probe{
			PeriodSeconds:    10,
			FailureThreshold: startupFailureAttempts,
			ProbeType: &runpb.Probe_HttpGet{
				HttpGet: &runpb.HTTPGetAction{Path: healthCheckPath, Port: cfg.Port},
			},
		},
	}

	return &runpb.Service{
		Name:    cfg.ServiceName(),
		Labels:  map[string]string{managedByLabel: managedByLabelValue},
		Ingress: runpb.IngressTraffic_INGRESS_TRAFFIC_ALL,
		Template: &runpb.RevisionTemplate{
			Scaling: &runpb.RevisionScaling{
				MinInstanceCount: cfg.MinInstances,
				MaxInstanceCount: cfg.MaxInstances,
			},
			Timeout:                       durationpb.New(cfg.Timeout),
			ServiceAccount:                cfg.ServiceAccount,
			MaxInstanceRequestConcurrency: cfg.Concurrency,
			Containers:                    []*runpb.Container{container},
		},
		Traffic: []*runpb.TrafficTarget{
			{Type: runpb.TrafficTargetAllocationType_TRAFFIC_TARGET_ALLOCATION_TYPE_LATEST, Percent: 100},
		},
	}
}

func (d *CloudRunDeployer) Deploy(ctx context.Context, cfg config.DeployConfig, image string) error {
	spec := ServiceSpec(cfg, image)

	op, err := d.services.UpdateService(ctx, &runpb.UpdateServiceRequest{Service: spec, AllowMissing: true})
	if err != nil {
		return fmt.Errorf("error deploying service %v: %w", cfg.Service, err)
	}

	slog.Info("waiting for cloud run rollout", "service", cfg.Service, "image", image, "code", logging.DEPLOY)

	svc, err := op.Wait(ctx)
	if err != nil {
		return fmt.Errorf("error waiting for service %v rollout: %w", cfg.Service, err)
	}

	slog.Info("service rolled out", "service", cfg.Service, "revision", svc.GetLatestReadyRevision(), "code", logging.DEPLOY)

	return d.applyAccess(ctx, cfg)
}

func (d *CloudRunDeployer) applyAccess(ctx context.Context, cfg config.DeployConfig) error {
	resource := cfg.ServiceName()

	policy, err := d.services.GetIamPolicy(ctx, &iampb.GetIamPolicyRequest{Resource: resource})
	if err != nil {
		return fmt.Errorf("error reading iam policy for %v: %w", cfg.Service, err)
	}

	if !ApplyInvokerPolicy(policy, cfg) {
		slog.Info("iam policy already up to date", "service", cfg.Service, "auth", cfg.Auth, "code", logging.DEPLOY)
		return nil
	}

	if _, err := d.services.SetIamPolicy(ctx, &iampb.SetIamPolicyRequest{Resource: resource, Policy: policy}); err != nil {
		return fmt.Errorf("error updating iam policy for %v: %w", cfg.Service, err)
	}

	slog.Info("updated iam policy", "service", cfg.Service, "auth", cfg.Auth, "code", logging.DEPLOY)
	return nil
}

func invokerMember(invoker string) string {
	if strings.Contains(invoker, ":") || invoker == allUsers || invoker == allAuthenticatedUsers {
		return invoker
	}
	return "serviceAccount:" + invoker
}

// ApplyInvokerPolicy edits the run.invoker binding of policy to match the
// configured auth mode and reports whether anything changed.
func ApplyInvokerPolicy(policy *iampb.Policy, cfg config.DeployConfig) bool {
	var binding *iampb.Binding
	for _, b := range policy.Bindings {
		if b.Role == invokerRole && b.Condition == nil {
			binding = b
			break
		}
	}
	if binding == nil {
		binding = &iampb.Binding{Role: invokerRole}
		policy.Bindings = append(policy.Bindings, binding)
	}

	before := slices.Clone(binding.Members)

	var wanted []string
	switch cfg.Auth {
	case config.AuthPublic:
		wanted = []string{allUsers}
	case config.AuthServiceAccount:
		for _, inv := range cfg.Invokers {
			wanted = append(wanted, invokerMember(inv))
		}
	}

	if cfg.Auth != config.AuthPublic {
		binding.Members = slices.DeleteFunc(binding.Members, func(m string) bool {
			return m == allUsers || m == allAuthenticatedUsers
		})
	}
	for _, m := range wanted {
		if !slices.Contains(binding.Members, m) {
			binding.Members = append(binding.Members, m)
		}
	}

	if len(binding.Members) == 0 {
		policy.Bindings = slices.DeleteFunc(policy.Bindings, func(b *iampb.Binding) bool { return b == binding })
	}

	return !slices.Equal(before, binding.Members)
}

func (d *CloudRunDeployer) ServiceUrl(ctx context.Context, cfg config.DeployConfig) (string, error) {
	svc, err := d.services.GetService(ctx, &runpb.GetServiceRequest{Name: cfg.ServiceName()})
	if err != nil {
		return "", fmt.Errorf("error reading service %v: %w", cfg.Service, err)
	}
	if svc.GetUri() == "" {
		return "", fmt.Errorf("service %v has no url yet", cfg.Service)
	}
	return svc.GetUri(), nil
}
