package service

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/reports"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/utils"
)

func reportError(err error) error {
	if errors.Is(err, reports.ErrReportNotFound) {
		return CodedError(err, http.StatusNotFound)
	}
	return CodedError(err, http.StatusInternalServerError)
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("query parameter '%v' must be a non-negative integer", key)
	}
	return value, nil
}

type listReportsResponse struct {
	Reports []reports.ReportSummary `json:"reports"`
}

func (s *SalesIntelService) ListReports(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		utils.WriteDetail(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		utils.WriteDetail(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	stored, err := s.reports.List(reports.ListFilter{
		CompanyWebsite: r.URL.Query().Get("website"),
		Limit:          limit,
		Offset:         offset,
	})
	if err != nil {
		writeError(w, reportError(err))
		return
	}

	res := listReportsResponse{Reports: make([]reports.ReportSummary, 0, len(stored))}
	for i := range stored {
		res.Reports = append(res.Reports, stored[i].Summary())
	}

	utils.WriteJsonResponse(w, res)
}

func (s *SalesIntelService) GetReport(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamUUID(r, "report_id")
	if err != nil {
		utils.WriteDetail(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	report, err := s.reports.Get(id)
	if err != nil {
		writeError(w, reportError(err))
		return
	}

	result, err := analysis.FromReport(report)
	if err != nil {
		utils.WriteDetail(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.WriteJsonResponse(w, result)
}

func (s *SalesIntelService) DeleteReport(w http.ResponseWriter, r *http.Request) {
	id, err := utils.URLParamUUID(r, "report_id")
	if err != nil {
		utils.WriteDetail(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := s.reports.Delete(id); err != nil {
		writeError(w, reportError(err))
		return
	}

	utils.WriteSuccess(w)
}
