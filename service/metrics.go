package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	analyzeMetric = promauto.NewSummary(prometheus.SummaryOpts{Name: "sales_intel_analyze_seconds", Help: "Analyze request latency"})
	customMetric  = promauto.NewSummary(prometheus.SummaryOpts{Name: "sales_intel_custom_prompt_seconds", Help: "Custom prompt request latency"})

	analysisOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_intel_analysis_total",
		Help: "Analysis requests by outcome.",
	}, []string{"outcome"})
)
