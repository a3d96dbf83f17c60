package analysis

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed report_schema.json
var reportSchema string

const reportSchemaUrl = "report_schema.json"

// Validator checks generated reports against the report JSON schema. Violations
// are reported, not enforced: the model is asked for a best effort document.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(reportSchemaUrl, strings.NewReader(reportSchema)); err != nil {
		return nil, fmt.Errorf("error loading report schema: %w", err)
	}
	schema, err := compiler.Compile(reportSchemaUrl)
	if err != nil {
		return nil, fmt.Errorf("error compiling report schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

func (v *Validator) Validate(report map[string]interface{}) []string {
	err := v.schema.Validate(report)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []string{err.Error()}
	}

	seen := map[string]struct{}{}
	violations := []string{}
	for _, e := range verr.BasicOutput().Errors {
		if e.Error == "" || strings.HasPrefix(e.Error, "doesn't validate with") {
			continue
		}
		location := e.InstanceLocation
		if location == "" {
			location = "/"
		}
		msg := fmt.Sprintf("%s: %s", location, e.Error)
		if _, ok := seen[msg]; ok {
			continue
		}
		seen[msg] = struct{}{}
		violations = append(violations, msg)
	}
	sort.Strings(violations)

	if len(violations) == 0 {
		violations = append(violations, verr.Error())
	}
	return violations
}
