package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/reports"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testApiKey = "test-key"

type stubGenerator struct {
	output string
	err    error
	panic  bool
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.panic {
		panic("generator exploded")
	}
	return g.output, g.err
}

func (g *stubGenerator) Model() string {
	return "stub-model"
}

type testEnv struct {
	router http.Handler
	store  *reports.Store
}

func newTestEnv(t *testing.T, gen analysis.Generator, opts service.Options) *testEnv {
	name := strings.ReplaceAll(t.Name(), "/", "_")
	store, err := reports.Open(fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	validator, err := analysis.NewValidator()
	require.NoError(t, err)

	analyzer := analysis.NewAnalyzer(gen, validator, store, analysis.AnalyzerOptions{CacheTTL: time.Hour, GenerationTimeout: time.Minute})
	svc := service.NewSalesIntelService(analyzer, store, opts)

	return &testEnv{router: svc.Routes(), store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, apiKey string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var res map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res
}

func TestPublicRoutes(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})

	w := env.do(t, "GET", "/", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{
		"service":   "Sales Intelligence API",
		"status":    "running",
		"version":   "1.0.0",
		"vertex_ai": "enabled",
	}, decode(t, w))

	w = env.do(t, "GET", "/health", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	health := decode(t, w)
	assert.Equal(t, "healthy", health["status"])
	assert.Equal(t, "operational", health["service"])
	_, err := time.Parse(time.RFC3339, health["timestamp"].(string))
	assert.NoError(t, err)

	w = env.do(t, "GET", "/docs", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "swagger-ui")

	w = env.do(t, "GET", "/openapi.json", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode(t, w)
	assert.Contains(t, doc["paths"], "/api/v1/analyze")

	w = env.do(t, "GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "GET", "/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func corsRequest(t *testing.T, router http.Handler, method, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/health", nil)
	req.Header.Set("Origin", origin)
	if method == http.MethodOptions {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCors(t *testing.T) {
	t.Run("AllOriginsEchoed", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})

		w := corsRequest(t, env.router, http.MethodGet, "https://app.example")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

		w = corsRequest(t, env.router, http.MethodOptions, "https://other.example")
		assert.Equal(t, "https://other.example", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	})

	t.Run("ConfiguredOrigins", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{
			ApiKey:             testApiKey,
			CorsAllowedOrigins: []string{"https://app.example"},
		})

		w := corsRequest(t, env.router, http.MethodGet, "https://app.example")
		assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))

		w = corsRequest(t, env.router, http.MethodGet, "https://evil.example")
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestApiKeyAuth(t *testing.T) {
	body := map[string]string{"company_website": "https://acme.example"}

	t.Run("NotConfigured", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{})
		w := env.do(t, "POST", "/api/v1/analyze", body, "anything")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "API key not configured on server", decode(t, w)["detail"])
	})

	t.Run("Missing", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze", body, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Missing X-API-KEY header", decode(t, w)["detail"])
	})

	t.Run("Invalid", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "GET", "/api/v1/reports", nil, "wrong-key")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "Invalid API key", decode(t, w)["detail"])
	})

	t.Run("Valid", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "GET", "/api/v1/reports", nil, testApiKey)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestAnalyze(t *testing.T) {
	gen := &stubGenerator{output: "```json\n{\"company_overview\": {\"name\": \"Acme\"}}\n```"}
	env := newTestEnv(t, gen, service.Options{ApiKey: testApiKey})

	req := map[string]string{
		"company_website":  "https://acme.example",
		"company_linkedin": "https://www.linkedin.com/company/acme",
		"analysis_date":    "2025-11-10",
	}

	w := env.do(t, "POST", "/api/v1/analyze", req, testApiKey)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res analysis.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, "Acme", res.Data["company_overview"].(map[string]interface{})["name"])
	assert.Equal(t, "2025-11-10", res.Metadata.AnalysisDate)
	assert.Equal(t, "stub-model", res.Metadata.Model)
	assert.False(t, res.Metadata.Cached)
	assert.NotEmpty(t, res.Metadata.SchemaViolations)
	assert.NotEqual(t, uuid.Nil, res.Metadata.ReportId)

	w = env.do(t, "POST", "/api/v1/analyze", req, testApiKey)
	require.Equal(t, http.StatusOK, w.Code)
	var cached analysis.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cached))
	assert.True(t, cached.Metadata.Cached)
	assert.Equal(t, res.Metadata.ReportId, cached.Metadata.ReportId)
}

func TestAnalyzeErrors(t *testing.T) {
	t.Run("InvalidRequest", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})

		for _, body := range []map[string]string{
			{},
			{"company_website": "acme.example"},
			{"company_website": "https://acme.example", "analysis_date": "10/11/2025"},
		} {
			w := env.do(t, "POST", "/api/v1/analyze", body, testApiKey)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, body)
		}
	})

	t.Run("MalformedBody", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})
		req := httptest.NewRequest("POST", "/api/v1/analyze", strings.NewReader("{"))
		req.Header.Set("X-API-KEY", testApiKey)
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{output: "Sorry, I cannot research that company."}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze", map[string]string{"company_website": "https://acme.example"}, testApiKey)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "AI response was not valid JSON. Response preview: Sorry, I cannot research that company....", decode(t, w)["detail"])
	})

	t.Run("GenerationFailed", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{err: errors.New("quota exceeded")}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze", map[string]string{"company_website": "https://acme.example"}, testApiKey)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Analysis failed: quota exceeded", decode(t, w)["detail"])
	})

	t.Run("Timeout", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{err: context.DeadlineExceeded}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze", map[string]string{"company_website": "https://acme.example"}, testApiKey)
		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	})

	t.Run("Panic", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{panic: true}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze", map[string]string{"company_website": "https://acme.example"}, testApiKey)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		res := decode(t, w)
		assert.Equal(t, "error", res["status"])
		assert.Equal(t, "Internal server error", res["message"])
		assert.Equal(t, "generator exploded", res["detail"])
	})
}

func TestAnalyzeRateLimit(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey, RateLimitPerMinute: 1})

	w := env.do(t, "POST", "/api/v1/analyze", map[string]string{}, testApiKey)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "POST", "/api/v1/analyze", map[string]string{}, testApiKey)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// reports are not rate limited
	w = env.do(t, "GET", "/api/v1/reports", nil, testApiKey)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAnalyzeCustom(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{output: `{"answer": 42}`}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze/custom", map[string]string{"prompt": "what is the answer"}, testApiKey)
		require.Equal(t, http.StatusOK, w.Code)
		res := decode(t, w)
		assert.Equal(t, "success", res["status"])
		assert.Equal(t, map[string]interface{}{"answer": float64(42)}, res["data"])
		assert.Equal(t, `{"answer": 42}`, res["raw_output"])
	})

	t.Run("Text", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{output: "plain answer"}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze/custom", map[string]string{"prompt": "say something"}, testApiKey)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "plain answer", decode(t, w)["data"])
	})

	t.Run("MissingPrompt", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{output: "unused"}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze/custom", map[string]string{}, testApiKey)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "missing 'prompt' field in request body", decode(t, w)["detail"])
	})

	t.Run("GenerationFailed", func(t *testing.T) {
		env := newTestEnv(t, &stubGenerator{err: errors.New("backend down")}, service.Options{ApiKey: testApiKey})
		w := env.do(t, "POST", "/api/v1/analyze/custom", map[string]string{"prompt": "hi"}, testApiKey)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to process prompt: backend down", decode(t, w)["detail"])
	})
}

func TestReports(t *testing.T) {
	env := newTestEnv(t, &stubGenerator{}, service.Options{ApiKey: testApiKey})

	older := &reports.Report{
		CacheKey:       "a",
		CompanyWebsite: "https://acme.example",
		AnalysisDate:   "2025-11-09",
		Model:          "stub-model",
		Data:           `{"company_overview": {"name": "Acme"}}`,
		CreatedAt:      time.Date(2025, 11, 9, 0, 0, 0, 0, time.UTC),
	}
	newer := &reports.Report{
		CacheKey:       "b",
		CompanyWebsite: "https://globex.example",
		AnalysisDate:   "2025-11-10",
		Model:          "stub-model",
		Data:           `{"company_overview": {"name": "Globex"}}`,
		CreatedAt:      time.Date(2025, 11, 10, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, env.store.Save(older))
	require.NoError(t, env.store.Save(newer))

	w := env.do(t, "GET", "/api/v1/reports", nil, testApiKey)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Reports []reports.ReportSummary `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Reports, 2)
	assert.Equal(t, newer.Id, list.Reports[0].Id)
	assert.Equal(t, older.Id, list.Reports[1].Id)

	w = env.do(t, "GET", "/api/v1/reports?website=https://acme.example", nil, testApiKey)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Reports, 1)
	assert.Equal(t, older.Id, list.Reports[0].Id)

	w = env.do(t, "GET", "/api/v1/reports?limit=abc", nil, testApiKey)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "GET", "/api/v1/reports/"+older.Id.String(), nil, testApiKey)
	require.Equal(t, http.StatusOK, w.Code)
	var res analysis.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, older.Id, res.Metadata.ReportId)
	assert.Equal(t, "Acme", res.Data["company_overview"].(map[string]interface{})["name"])

	w = env.do(t, "GET", "/api/v1/reports/not-a-uuid", nil, testApiKey)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = env.do(t, "GET", "/api/v1/reports/"+uuid.NewString(), nil, testApiKey)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, "DELETE", "/api/v1/reports/"+older.Id.String(), nil, testApiKey)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, "DELETE", "/api/v1/reports/"+older.Id.String(), nil, testApiKey)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
