package reports

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Report struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	CacheKey string `gorm:"size:64;not null;index"`

	CompanyName     string `gorm:"size:500"`
	CompanyWebsite  string `gorm:"size:2048;not null;index"`
	CompanyLinkedin string `gorm:"size:2048"`
	AnalysisDate    string `gorm:"size:10;not null"`
	Model           string `gorm:"size:100;not null"`

	// Data is the generated report as json text.
	Data             string `gorm:"type:text;not null"`
	SchemaViolations string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;index"`
}

// DecodeData keeps numbers as json.Number so stored reports encode the same
// as freshly generated ones.
func (r *Report) DecodeData() (map[string]interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(r.Data))
	dec.UseNumber()

	var data map[string]interface{}
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("stored report %v has invalid data: %w", r.Id, err)
	}
	return data, nil
}

func (r *Report) Violations() []string {
	if r.SchemaViolations == "" {
		return nil
	}
	var violations []string
	if err := json.Unmarshal([]byte(r.SchemaViolations), &violations); err != nil {
		return nil
	}
	return violations
}

func (r *Report) SetViolations(violations []string) error {
	if len(violations) == 0 {
		r.SchemaViolations = ""
		return nil
	}
	data, err := json.Marshal(violations)
	if err != nil {
		return err
	}
	r.SchemaViolations = string(data)
	return nil
}

// ReportSummary is the listing view of a report, without the report body.
type ReportSummary struct {
	Id             uuid.UUID `json:"report_id"`
	CompanyName    string    `json:"company_name,omitempty"`
	CompanyWebsite string    `json:"company_website"`
	AnalysisDate   string    `json:"analysis_date"`
	Model          string    `json:"model"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *Report) Summary() ReportSummary {
	return ReportSummary{
		Id:             r.Id,
		CompanyName:    r.CompanyName,
		CompanyWebsite: r.CompanyWebsite,
		AnalysisDate:   r.AnalysisDate,
		Model:          r.Model,
		CreatedAt:      r.CreatedAt,
	}
}
