package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/client"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"
)

var ErrSmokeFailed = errors.New("smoke test failed")

type SmokeClient interface {
	Health(ctx context.Context) (client.HealthStatus, error)
	Analyze(ctx context.Context, req analysis.AnalysisRequest) (*analysis.Result, error)
}

type SmokeOptions struct {
	// Analyze also posts SampleRequest to the analyze route. This calls the
	// model and can take minutes.
	Analyze bool
}

// Smoke runs the post deploy acceptance checks against a running service.
func Smoke(ctx context.Context, c SmokeClient, opts SmokeOptions) error {
	health, err := c.Health(ctx)
	if err != nil {
		return fmt.Errorf("%w: health check: %w", ErrSmokeFailed, err)
	}
	if health.Status != "healthy" {
		return fmt.Errorf("%w: health check returned status '%v'", ErrSmokeFailed, health.Status)
	}
	slog.Info("health check passed", "timestamp", health.Timestamp, "code", logging.DEPLOY)

	if !opts.Analyze {
		return nil
	}

	result, err := c.Analyze(ctx, SampleRequest)
	if err != nil {
		return fmt.Errorf("%w: analyze: %w", ErrSmokeFailed, err)
	}
	if result.Status != "success" || len(result.Data) == 0 {
		return fmt.Errorf("%w: analyze returned status '%v' with %d report sections", ErrSmokeFailed, result.Status, len(result.Data))
	}
	slog.Info("analyze check passed", "report_id", result.Metadata.ReportId, "sections", len(result.Data), "code", logging.DEPLOY)

	return nil
}
