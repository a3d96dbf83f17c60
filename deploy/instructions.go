package deploy

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"
	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/config"

	"github.com/Masterminds/sprig/v3"
)

// SampleRequest is the payload used for manual and automated smoke tests.
var SampleRequest = analysis.AnalysisRequest{
	CompanyWebsite:  "https://futransolutions.com/",
	CompanyLinkedin: "https://www.linkedin.com/company/futransolutionsinc/",
	AnalysisDate:    "2025-11-10",
}

const instructionsTemplate = `{{- $url := .Url | trimSuffix "/" -}}
Service {{ .Service }} is live at {{ $url }}

Health check:
  curl {{ $url }}/health

API docs:
  {{ $url }}/docs

Analyze a company:
  curl -X POST {{ $url }}/api/v1/analyze \
    -H "Content-Type: application/json" \
{{- if .ApiKey.Secret }}
    -H "X-API-KEY: $(gcloud secrets versions access {{ .ApiKey.SecretVersion | default "latest" }} --secret {{ .ApiKey.Secret }})" \
{{- else }}
    -H "X-API-KEY: $API_KEY" \
{{- end }}
{{- if ne .Auth "public" }}
    -H "Authorization: Bearer $(gcloud auth print-identity-token)" \
{{- end }}
    -d '{{ .Sample | toJson }}'

Logs:
  salesctl logs --project {{ .Project }} --region {{ .Region }} --service {{ .Service }}
`

var instructions = template.Must(template.New("instructions").Funcs(sprig.TxtFuncMap()).Parse(instructionsTemplate))

// RenderInstructions prints the post deploy usage guide for the service at url.
func RenderInstructions(cfg config.DeployConfig, url string) (string, error) {
	var buf bytes.Buffer
	err := instructions.Execute(&buf, map[string]interface{}{
		"Service": cfg.Service,
		"Project": cfg.Project,
		"Region":  cfg.Region,
		"Url":     url,
		"Auth":    string(cfg.Auth),
		"ApiKey":  cfg.ApiKey,
		"Sample":  SampleRequest,
	})
	if err != nil {
		return "", fmt.Errorf("error rendering instructions: %w", err)
	}
	return buf.String(), nil
}
