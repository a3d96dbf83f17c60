package analysis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/reports"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "sales_intel_generation_seconds", Help: "Model generation latency"})
	cacheHitMetric   = promauto.NewCounter(prometheus.CounterOpts{Name: "sales_intel_report_cache_hits", Help: "Reports served from the report store instead of the model"})
)

// ReportStore is the persistence needed by the analyzer.
type ReportStore interface {
	Save(report *reports.Report) error
	FindFresh(cacheKey string, since time.Time) (*reports.Report, error)
}

type Analyzer struct {
	generator Generator
	validator *Validator
	store     ReportStore

	cacheTTL          time.Duration
	generationTimeout time.Duration

	now func() time.Time
}

type AnalyzerOptions struct {
	// CacheTTL of zero disables report reuse.
	CacheTTL          time.Duration
	GenerationTimeout time.Duration
}

func NewAnalyzer(generator Generator, validator *Validator, store ReportStore, opts AnalyzerOptions) *Analyzer {
	return &Analyzer{
		generator:         generator,
		validator:         validator,
		store:             store,
		cacheTTL:          opts.CacheTTL,
		generationTimeout: opts.GenerationTimeout,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

func (a *Analyzer) Model() string {
	return a.generator.Model()
}

func cacheKey(req AnalysisRequest, analysisDate, model string) string {
	parts := []string{
		strings.ToLower(strings.TrimRight(req.CompanyWebsite, "/")),
		strings.ToLower(strings.TrimRight(req.CompanyLinkedin, "/")),
		strings.ToLower(req.CompanyName),
		analysisDate,
		model,
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

func (a *Analyzer) generate(ctx context.Context, prompt string) (string, error) {
	if a.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.generationTimeout)
		defer cancel()
	}

	timer := prometheus.NewTimer(generationMetric)
	defer timer.ObserveDuration()

	return a.generator.Generate(ctx, prompt)
}

// FromReport rebuilds an analysis result from a stored report.
func FromReport(report *reports.Report) (*Result, error) {
	data, err := report.DecodeData()
	if err != nil {
		return nil, err
	}
	return &Result{
		Status: "success",
		Data:   data,
		Metadata: Metadata{
			CompanyWebsite:   report.CompanyWebsite,
			CompanyLinkedin:  report.CompanyLinkedin,
			CompanyName:      report.CompanyName,
			AnalysisDate:     report.AnalysisDate,
			GeneratedAt:      report.CreatedAt,
			Model:            report.Model,
			ReportId:         report.Id,
			SchemaViolations: report.Violations(),
		},
	}, nil
}

// Analyze generates (or reuses) the sales intelligence report for a company.
// The request must already be validated.
func (a *Analyzer) Analyze(ctx context.Context, req AnalysisRequest) (*Result, error) {
	slog.Info("starting analysis", "company_website", req.CompanyWebsite, "code", logging.ANALYSIS)

	analysisDate := req.AnalysisDate
	if analysisDate == "" {
		analysisDate = a.now().Format(DateLayout)
	}

	key := cacheKey(req, analysisDate, a.generator.Model())

	if a.store != nil && a.cacheTTL > 0 {
		cached, err := a.store.FindFresh(key, a.now().Add(-a.cacheTTL))
		if err != nil {
			slog.Error("report cache lookup failed", "error", err, "code", logging.ANALYSIS)
		} else if cached != nil {
			result, err := FromReport(cached)
			if err == nil {
				result.Metadata.Cached = true
				cacheHitMetric.Inc()
				slog.Info("serving cached report", "report_id", cached.Id, "code", logging.ANALYSIS)
				return result, nil
			}
			slog.Error("ignoring unreadable cached report", "report_id", cached.Id, "error", err, "code", logging.ANALYSIS)
		}
	}

	raw, err := a.generate(ctx, BuildUserPrompt(req, analysisDate))
	if err != nil {
		return nil, err
	}
	slog.Info("model response preview", "preview", utils.Preview(raw, 500), "code", logging.ANALYSIS)

	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	var violations []string
	if a.validator != nil {
		violations = a.validator.Validate(data)
		if len(violations) > 0 {
			slog.Warn("report does not match schema", "violations", len(violations), "code", logging.ANALYSIS)
		}
	}

	result := &Result{
		Status: "success",
		Data:   data,
		Metadata: Metadata{
			CompanyWebsite:   req.CompanyWebsite,
			CompanyLinkedin:  req.CompanyLinkedin,
			CompanyName:      req.CompanyName,
			AnalysisDate:     analysisDate,
			GeneratedAt:      a.now(),
			Model:            a.generator.Model(),
			SchemaViolations: violations,
		},
	}

	if a.store != nil {
		if err := a.persist(key, result); err != nil {
			// the report is still returned, it just cannot be looked up later
			slog.Error("failed to persist report", "error", err, "code", logging.ANALYSIS)
		}
	}

	slog.Info("generated report", "company_website", req.CompanyWebsite, "report_id", result.Metadata.ReportId, "code", logging.ANALYSIS)
	return result, nil
}

func (a *Analyzer) persist(key string, result *Result) error {
	data, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("error encoding report: %w", err)
	}

	report := &reports.Report{
		CacheKey:        key,
		CompanyName:     result.Metadata.CompanyName,
		CompanyWebsite:  result.Metadata.CompanyWebsite,
		CompanyLinkedin: result.Metadata.CompanyLinkedin,
		AnalysisDate:    result.Metadata.AnalysisDate,
		Model:           result.Metadata.Model,
		Data:            string(data),
		CreatedAt:       result.Metadata.GeneratedAt,
	}
	if err := report.SetViolations(result.Metadata.SchemaViolations); err != nil {
		return err
	}

	if err := a.store.Save(report); err != nil {
		return err
	}
	result.Metadata.ReportId = report.Id
	return nil
}

// Custom sends an arbitrary prompt to the model. The output is returned parsed
// when it is a JSON document and as text otherwise.
func (a *Analyzer) Custom(ctx context.Context, prompt string) (*CustomResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	slog.Info("processing custom prompt", "code", logging.ANALYSIS)

	raw, err := a.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return &CustomResult{Status: "success", Data: raw, RawOutput: raw}, nil
	}
	return &CustomResult{Status: "success", Data: parsed, RawOutput: raw}, nil
}
