package analysis

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

var (
	ErrInvalidRequest     = errors.New("invalid analysis request")
	ErrIncompleteResponse = errors.New("model returned an empty or incomplete response")
	ErrInvalidJSON        = errors.New("AI response was not valid JSON")
	ErrEmptyPrompt        = errors.New("missing 'prompt' field in request body")
)

type AnalysisRequest struct {
	CompanyName     string `json:"company_name,omitempty"`
	CompanyWebsite  string `json:"company_website"`
	CompanyLinkedin string `json:"company_linkedin,omitempty"`
	AnalysisDate    string `json:"analysis_date,omitempty"`
}

func validateHttpUrl(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v is not a valid URL: %v", ErrInvalidRequest, field, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %v must be an http or https URL", ErrInvalidRequest, field)
	}
	return nil
}

// Validate trims the request fields in place and checks them.
func (r *AnalysisRequest) Validate() error {
	r.CompanyName = strings.TrimSpace(r.CompanyName)
	r.CompanyWebsite = strings.TrimSpace(r.CompanyWebsite)
	r.CompanyLinkedin = strings.TrimSpace(r.CompanyLinkedin)
	r.AnalysisDate = strings.TrimSpace(r.AnalysisDate)

	if r.CompanyWebsite == "" {
		return fmt.Errorf("%w: field required: company_website", ErrInvalidRequest)
	}
	if err := validateHttpUrl("company_website", r.CompanyWebsite); err != nil {
		return err
	}
	if r.CompanyLinkedin != "" {
		if err := validateHttpUrl("company_linkedin", r.CompanyLinkedin); err != nil {
			return err
		}
	}
	if r.AnalysisDate != "" {
		if _, err := time.Parse(DateLayout, r.AnalysisDate); err != nil {
			return fmt.Errorf("%w: analysis_date must be YYYY-MM-DD", ErrInvalidRequest)
		}
	}
	return nil
}

type Metadata struct {
	CompanyWebsite   string    `json:"company_website"`
	CompanyLinkedin  string    `json:"company_linkedin,omitempty"`
	CompanyName      string    `json:"company_name,omitempty"`
	AnalysisDate     string    `json:"analysis_date"`
	GeneratedAt      time.Time `json:"generated_at"`
	Model            string    `json:"model"`
	ReportId         uuid.UUID `json:"report_id"`
	Cached           bool      `json:"cached"`
	SchemaViolations []string  `json:"schema_violations,omitempty"`
}

type Result struct {
	Status   string                 `json:"status"`
	Data     map[string]interface{} `json:"data"`
	Metadata Metadata               `json:"metadata"`
}

type CustomResult struct {
	Status    string      `json:"status"`
	Data      interface{} `json:"data"`
	RawOutput string      `json:"raw_output"`
}

// jsonError carries a preview of the model output that failed to parse.
type jsonError struct {
	preview string
}

func (e *jsonError) Error() string {
	return fmt.Sprintf("%v. Response preview: %v...", ErrInvalidJSON, e.preview)
}

func (e *jsonError) Unwrap() error {
	return ErrInvalidJSON
}
