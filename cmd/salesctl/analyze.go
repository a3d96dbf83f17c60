package main

import (
	"encoding/json"
	"fmt"

	"github.com/Lokesh-Sai-Tamiri/wyra-vertex/analysis"

	"github.com/spf13/cobra"
)

var analyzeTarget targetFlags

var analyzeFlags struct {
	request analysis.AnalysisRequest
	prompt  string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Request a sales intelligence report from a deployed service",
	Example: `  salesctl analyze --url https://sales-intelligence-api-xyz.a.run.app --website https://futransolutions.com/
  salesctl analyze --url http://localhost:8080 --prompt "Summarize the fintech market in JSON"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if analyzeFlags.prompt == "" {
			if err := analyzeFlags.request.Validate(); err != nil {
				return err
			}
		}

		c, err := analyzeTarget.client(ctx)
		if err != nil {
			return err
		}

		var result interface{}
		if analyzeFlags.prompt != "" {
			result, err = c.AnalyzeCustom(ctx, analyzeFlags.prompt)
		} else {
			result, err = c.Analyze(ctx, analyzeFlags.request)
		}
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting response: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	analyzeTarget.register(analyzeCmd)

	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.request.CompanyWebsite, "website", "", "Company website URL")
	f.StringVar(&analyzeFlags.request.CompanyLinkedin, "linkedin", "", "Company LinkedIn URL")
	f.StringVar(&analyzeFlags.request.CompanyName, "name", "", "Company name")
	f.StringVar(&analyzeFlags.request.AnalysisDate, "date", "", "Analysis date YYYY-MM-DD, defaults to today on the server")
	f.StringVar(&analyzeFlags.prompt, "prompt", "", "Send a custom prompt instead of a company analysis")
}
