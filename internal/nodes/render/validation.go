package render

import (
	"outputrocks-nodes/internal/common/errors"
	"outputrocks-nodes/internal/common/validation"
)

var formats = []interface{}{"pdf", "txt", "html"}

var documentRequestSchema = validation.MustCompile("render-request", map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"template", "format", "data"},
	"properties": map[string]interface{}{
		"template": map[string]interface{}{"type": "string", "minLength": 1},
		"format":   map[string]interface{}{"type": "string", "enum": formats},
		"metadata": map[string]interface{}{"type": "object"},
		"webhook":  map[string]interface{}{"type": "string", "minLength": 1},
	},
})

var emailRequestSchema = validation.MustCompile("render-email-request", map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"email_template", "email_server", "format", "data"},
	"properties": map[string]interface{}{
		"email_template": map[string]interface{}{"type": "string", "minLength": 1},
		"email_server":   map[string]interface{}{"type": "string", "minLength": 1},
		"format":         map[string]interface{}{"type": "string", "enum": formats},
		"metadata":       map[string]interface{}{"type": "object"},
		"webhook":        map[string]interface{}{"type": "string", "minLength": 1},
	},
})

// validateRequest checks the required keys of the outgoing body.
func validateRequest(v Variant, req *RenderRequest) error {
	schema := documentRequestSchema
	if v.Email {
		schema = emailRequestSchema
	}

	result, err := schema.Validate(req)
	if err != nil {
		return errors.NewInternalError(err)
	}
	if !result.Valid {
		return errors.NewInvalidParameterError(result.Summary())
	}
	return nil
}
