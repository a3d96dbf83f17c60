package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"
)

const (
	StepProject      = "project"
	StepBuild        = "build"
	StepDeploy       = "deploy"
	StepUrl          = "url"
	StepInstructions = "instructions"
)

// StepError reports which pipeline step failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %v: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Result struct {
	Image        string
	Url          string
	Instructions string
}

// Pipeline runs the deployment steps in order and stops at the first failure.
// Nothing is retried or rolled back.
type Pipeline struct {
	Builder  ImageBuilder
	Deployer ServiceDeployer

	Now func() time.Time
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func runStep(name string, fn func() error) error {
	start := time.Now()
	slog.Info("starting step", "step", name, "code", logging.DEPLOY)

	if err := fn(); err != nil {
		slog.Error("step failed", "step", name, "error", err, "code", logging.DEPLOY)
		return &StepError{Step: name, Err: err}
	}

	slog.Info("finished step", "step", name, "duration", time.Since(start).String(), "code", logging.DEPLOY)
	return nil
}

func (p *Pipeline) Run(ctx context.Context, cfg config.DeployConfig) (*Result, error) {
	result := &Result{}

	steps := []struct {
		name string
		fn   func() error
	}{
		{StepProject, func() error {
			return cfg.Validate()
		}},
		{StepBuild, func() error {
			image, err := p.Builder.Build(ctx, cfg, ImageTag(p.now()))
			result.Image = image
			return err
		}},
		{StepDeploy, func() error {
			return p.Deployer.Deploy(ctx, cfg, result.Image)
		}},
		{StepUrl, func() error {
			url, err := p.Deployer.ServiceUrl(ctx, cfg)
			result.Url = url
			return err
		}},
		{StepInstructions, func() error {
			text, err := RenderInstructions(cfg, result.Url)
			result.Instructions = text
			return err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return result, &StepError{Step: step.name, Err: err}
		}
		if err := runStep(step.name, step.fn); err != nil {
			return result, err
		}
	}

	return result, nil
}
