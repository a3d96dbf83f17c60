package analysis

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed system_instruction.md
var SystemInstruction string

func BuildUserPrompt(req AnalysisRequest, analysisDate string) string {
	linkedin := req.CompanyLinkedin
	if linkedin == "" {
		linkedin = "Not provided"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze %s and generate the sales intelligence report.\n\n", req.CompanyWebsite)
	if req.CompanyName != "" {
		fmt.Fprintf(&b, "Company Name: %s\n", req.CompanyName)
	}
	fmt.Fprintf(&b, "Company LinkedIn: %s\n", linkedin)
	fmt.Fprintf(&b, "Analysis Date: %s\n\n", analysisDate)
	b.WriteString("Return valid JSON only - no markdown or code blocks.")

	return b.String()
}
