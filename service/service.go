package service

import (
	"context"
	"embed"
	"net/http"
	"slices"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/reports"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ServiceName = "Sales Intelligence API"
	Version     = "1.0.0"
)

//go:embed static
var static embed.FS

type ReportAnalyzer interface {
	Analyze(ctx context.Context, req analysis.AnalysisRequest) (*analysis.Result, error)
	Custom(ctx context.Context, prompt string) (*analysis.CustomResult, error)
	Model() string
}

type ReportRepository interface {
	Get(id uuid.UUID) (*reports.Report, error)
	List(filter reports.ListFilter) ([]reports.Report, error)
	Delete(id uuid.UUID) error
}

type Options struct {
	ApiKey             string
	RateLimitPerMinute int
	CorsAllowedOrigins []string
}

type SalesIntelService struct {
	analyzer ReportAnalyzer
	reports  ReportRepository

	apiKey      string
	rateLimit   int
	corsOrigins []string

	now func() time.Time
}

func NewSalesIntelService(analyzer ReportAnalyzer, repo ReportRepository, opts Options) *SalesIntelService {
	origins := opts.CorsAllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &SalesIntelService{
		analyzer:    analyzer,
		reports:     repo,
		apiKey:      opts.ApiKey,
		rateLimit:   opts.RateLimitPerMinute,
		corsOrigins: origins,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *SalesIntelService) rateLimiter() func(http.Handler) http.Handler {
	if s.rateLimit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		s.rateLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			utils.WriteDetail(w, "Rate limit exceeded, try again later", http.StatusTooManyRequests)
		}),
	)
}

// corsOptions echoes the request origin instead of "*" when every origin is
// allowed.
func (s *SalesIntelService) corsOptions() cors.Options {
	opts := cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if slices.Contains(s.corsOrigins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(r *http.Request, origin string) bool { return true }
	}
	return opts
}

func (s *SalesIntelService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)
	r.Use(cors.Handler(s.corsOptions()))

	r.Get("/", s.Info)
	r.Get("/health", s.Health)
	r.Get("/docs", s.Docs)
	r.Get("/openapi.json", s.OpenApi)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ApiKeyAuth(s.apiKey))

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimiter())

			r.Post("/analyze", s.Analyze)
			r.Post("/analyze/custom", s.AnalyzeCustom)
		})

		r.Get("/reports", s.ListReports)
		r.Get("/reports/{report_id}", s.GetReport)
		r.Delete("/reports/{report_id}", s.DeleteReport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteDetail(w, "Not Found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteDetail(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	return r
}

func (s *SalesIntelService) Info(w http.ResponseWriter, r *http.Request) {
	utils.WriteJsonResponse(w, map[string]string{
		"service":   ServiceName,
		"status":    "running",
		"version":   Version,
		"vertex_ai": "enabled",
	})
}

func (s *SalesIntelService) Health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJsonResponse(w, map[string]string{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
		"service":   "operational",
	})
}

func (s *SalesIntelService) Docs(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, static, "static/docs.html")
}

func (s *SalesIntelService) OpenApi(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, static, "static/openapi.json")
}
