package validation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "hire-onboarding/internal/common/errors"

	"github.com/xeipuuv/gojsonschema"
)

// Schema names.
const (
	SchemaCreateRequest       = "create_request"
	SchemaImportRequest       = "import_request"
	SchemaCandidateSubmission = "candidate_submission"
	SchemaHRCompletion        = "hr_completion"
)

const ndFields = `
	"firstName":      {"type": "string", "minLength": 1, "maxLength": 100},
	"lastName":       {"type": "string", "minLength": 1, "maxLength": 100},
	"email":          {"type": "string", "format": "email"},
	"phone":          {"type": "string", "pattern": "^\\+?[\\d\\s\\-\\(\\)]{7,}$"},
	"state":          {"type": "string", "maxLength": 50},
	"tourName":       {"type": "string", "minLength": 1},
	"positionTitle":  {"type": "string", "minLength": 1},
	"hireDate":       {"type": "string", "format": "date"},
	"eventRate":      {"type": "string", "pattern": "^\\d+(\\.\\d{1,2})?$"},
	"dayRate":        {"type": "string", "pattern": "^\\d+(\\.\\d{1,2})?$"},
	"workerCategory": {"type": "string", "minLength": 1},
	"hireOrRehire":   {"type": "string", "enum": ["Hire", "Rehire"]}`

var schemaSources = map[string]string{
	SchemaCreateRequest: `{
		"type": "object",
		"properties": {` + ndFields + `},
		"required": ["firstName", "lastName", "email", "tourName", "positionTitle", "hireDate",
			"eventRate", "dayRate", "workerCategory", "hireOrRehire"]
	}`,
	SchemaImportRequest: `{
		"type": "object",
		"properties": {` + ndFields + `,
			"ndUserId": {"type": "integer", "minimum": 1}
		},
		"required": ["ndUserId", "firstName", "lastName", "email", "tourName", "positionTitle",
			"hireDate", "eventRate", "dayRate", "workerCategory", "hireOrRehire"]
	}`,
	SchemaCandidateSubmission: `{
		"type": "object",
		"properties": {
			"email":         {"type": "string", "format": "email"},
			"phone":         {"type": "string", "pattern": "^\\+?[\\d\\s\\-\\(\\)]{7,}$"},
			"taxId":         {"type": "string", "pattern": "^\\d{3}-?\\d{2}-?\\d{4}$"},
			"birthDate":     {"type": "string", "format": "date"},
			"maritalStatus": {"type": "string", "enum": ["Single", "Married", "Divorced", "Widowed", "Separated"]},
			"address": {
				"type": "object",
				"properties": {
					"line1":   {"type": "string", "minLength": 1},
					"line2":   {"type": "string"},
					"city":    {"type": "string", "minLength": 1},
					"state":   {"type": "string", "minLength": 2},
					"zipCode": {"type": "string", "pattern": "^\\d{5}(-\\d{4})?$"}
				},
				"required": ["line1", "city", "state", "zipCode"]
			}
		},
		"required": ["email", "phone", "taxId", "birthDate", "maritalStatus", "address"]
	}`,
	SchemaHRCompletion: `{
		"type": "object",
		"properties": {
			"changeEffectiveDate": {"type": "string", "format": "date"},
			"companyCode":         {"type": "string", "minLength": 1},
			"homeDepartment":      {"type": "string", "minLength": 1},
			"suiCode":             {"type": "string", "minLength": 1},
			"i9Completed":         {"type": "boolean"},
			"eVerifyLocation":     {"type": "string", "minLength": 1}
		},
		"required": ["changeEffectiveDate", "companyCode", "homeDepartment", "suiCode",
			"i9Completed", "eVerifyLocation"]
	}`,
}

var (
	compileOnce sync.Once
	compiled    map[string]*gojsonschema.Schema
	compileErr  error
)

func schemas() (map[string]*gojsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*gojsonschema.Schema, len(schemaSources))
		for name, src := range schemaSources {
			s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
			if err != nil {
				compileErr = fmt.Errorf("compile schema %s: %w", name, err)
				return
			}
			compiled[name] = s
		}
	})
	return compiled, compileErr
}

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidateInput checks doc, any value that marshals to JSON, against the named schema.
func ValidateInput(schemaName string, doc interface{}) (*ValidationResult, error) {
	all, err := schemas()
	if err != nil {
		return nil, err
	}
	schema, ok := all[schemaName]
	if !ok {
		return nil, fmt.Errorf("unknown schema %q", schemaName)
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", schemaName, err)
	}

	out := &ValidationResult{Valid: res.Valid()}
	for _, e := range res.Errors() {
		field := e.Field()
		if e.Type() == "required" {
			if p, ok := e.Details()["property"].(string); ok {
				if field == "(root)" {
					field = p
				} else {
					field = field + "." + p
				}
			}
		}
		out.Errors = append(out.Errors, ValidationError{
			Field:   field,
			Message: e.Description(),
			Code:    strings.ToUpper(e.Type()),
		})
	}
	return out, nil
}

// Validate is ValidateInput reported as a VALIDATION_FAILED error.
func Validate(schemaName string, doc interface{}) error {
	res, err := ValidateInput(schemaName, doc)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	if res.Valid {
		return nil
	}
	fields := make(map[string]string, len(res.Errors))
	for _, e := range res.Errors {
		if _, seen := fields[e.Field]; !seen {
			fields[e.Field] = e.Message
		}
	}
	return apperrors.NewValidationError(strings.Join(res.GetErrorMessages(), "; "), fields)
}

// GetErrorMessages returns a sorted list of "field: message" strings.
func (vr *ValidationResult) GetErrorMessages() []string {
	messages := make([]string, len(vr.Errors))
	for i, err := range vr.Errors {
		messages[i] = fmt.Sprintf("%s: %s", err.Field, err.Message)
	}
	sort.Strings(messages)
	return messages
}

// HasErrors checks if validation has errors for specific field
func (vr *ValidationResult) HasErrors(field string) bool {
	for _, err := range vr.Errors {
		if err.Field == field || strings.HasPrefix(err.Field, field+".") {
			return true
		}
	}
	return false
}
