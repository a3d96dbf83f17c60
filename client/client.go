package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/reports"

	"github.com/google/uuid"
)

// Analysis requests can take several minutes while the model researches the
// company, so the default timeout is generous.
const DefaultTimeout = 10 * time.Minute

type SalesIntelClient struct {
	BaseClient
}

func New(baseUrl, apiKey string) *SalesIntelClient {
	return &SalesIntelClient{BaseClient: BaseClient{
		baseUrl:    baseUrl,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}}
}

func (c *SalesIntelClient) WithHttpClient(client *http.Client) *SalesIntelClient {
	c.httpClient = client
	return c
}

type ServiceInfo struct {
	Service  string `json:"service"`
	Status   string `json:"status"`
	Version  string `json:"version"`
	VertexAI string `json:"vertex_ai"`
}

type HealthStatus struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Service   string `json:"service"`
}

func (c *SalesIntelClient) Info(ctx context.Context) (ServiceInfo, error) {
	var res ServiceInfo
	err := c.Get(ctx, "/").Do(&res)
	return res, err
}

func (c *SalesIntelClient) Health(ctx context.Context) (HealthStatus, error) {
	var res HealthStatus
	err := c.Get(ctx, "/health").Do(&res)
	return res, err
}

func (c *SalesIntelClient) Analyze(ctx context.Context, req analysis.AnalysisRequest) (*analysis.Result, error) {
	var res analysis.Result
	if err := c.Post(ctx, "/api/v1/analyze").Json(req).Do(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *SalesIntelClient) AnalyzeCustom(ctx context.Context, prompt string) (*analysis.CustomResult, error) {
	var res analysis.CustomResult
	body := map[string]string{"prompt": prompt}
	if err := c.Post(ctx, "/api/v1/analyze/custom").Json(body).Do(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

type ListReportsOptions struct {
	Website string
	Limit   int
	Offset  int
}

func (c *SalesIntelClient) ListReports(ctx context.Context, opts ListReportsOptions) ([]reports.ReportSummary, error) {
	req := c.Get(ctx, "/api/v1/reports")
	if opts.Website != "" {
		req.Param("website", opts.Website)
	}
	if opts.Limit > 0 {
		req.Param("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		req.Param("offset", strconv.Itoa(opts.Offset))
	}

	var res struct {
		Reports []reports.ReportSummary `json:"reports"`
	}
	if err := req.Do(&res); err != nil {
		return nil, err
	}
	return res.Reports, nil
}

func (c *SalesIntelClient) GetReport(ctx context.Context, id uuid.UUID) (*analysis.Result, error) {
	var res analysis.Result
	if err := c.Get(ctx, fmt.Sprintf("/api/v1/reports/%v", id)).Do(&res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *SalesIntelClient) DeleteReport(ctx context.Context, id uuid.UUID) error {
	return c.Delete(ctx, fmt.Sprintf("/api/v1/reports/%v", id)).Do(nil)
}
