package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils/logging"

	"github.com/prometheus/client_golang/prometheus"
)

func analysisError(err error) error {
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest):
		return CodedError(err, http.StatusUnprocessableEntity)
	case errors.Is(err, analysis.ErrInvalidJSON):
		return CodedError(err, http.StatusInternalServerError)
	case errors.Is(err, context.DeadlineExceeded):
		return CodedError(fmt.Errorf("Analysis failed: model did not respond in time"), http.StatusGatewayTimeout)
	default:
		return CodedError(fmt.Errorf("Analysis failed: %w", err), http.StatusInternalServerError)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, analysis.ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, analysis.ErrInvalidJSON):
		return "invalid_json"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func (s *SalesIntelService) Analyze(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(analyzeMetric)
	defer timer.ObserveDuration()

	var params analysis.AnalysisRequest
	if !utils.ParseRequestBody(w, r, &params) {
		analysisOutcomes.WithLabelValues("invalid_request").Inc()
		return
	}

	if err := params.Validate(); err != nil {
		analysisOutcomes.WithLabelValues(outcome(err)).Inc()
		writeError(w, analysisError(err))
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), params)
	if err != nil {
		slog.Error("analysis failed", "company_website", params.CompanyWebsite, "error", err, "code", logging.ANALYSIS)
		analysisOutcomes.WithLabelValues(outcome(err)).Inc()
		writeError(w, analysisError(err))
		return
	}

	if result.Metadata.Cached {
		analysisOutcomes.WithLabelValues("cached").Inc()
	} else {
		analysisOutcomes.WithLabelValues("success").Inc()
	}

	utils.WriteJsonResponse(w, result)
}

type customPromptRequest struct {
	Prompt string `json:"prompt"`
}

func (s *SalesIntelService) AnalyzeCustom(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(customMetric)
	defer timer.ObserveDuration()

	var params customPromptRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	result, err := s.analyzer.Custom(r.Context(), params.Prompt)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptyPrompt) {
			utils.WriteDetail(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("custom prompt failed", "error", err, "code", logging.ANALYSIS)
		if errors.Is(err, context.DeadlineExceeded) {
			utils.WriteDetail(w, "Failed to process prompt: model did not respond in time", http.StatusGatewayTimeout)
			return
		}
		utils.WriteDetail(w, fmt.Sprintf("Failed to process prompt: %v", err), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, result)
}
