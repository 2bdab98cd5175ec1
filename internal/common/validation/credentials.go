package validation

import (
	"fmt"
	"strings"

	"moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

const loginRequestSchema = `{
	"type": "object",
	"required": ["moodle_url", "username", "password"],
	"properties": {
		"moodle_url": {"type": "string", "minLength": 1, "pattern": "\\S"},
		"username":   {"type": "string", "minLength": 1, "pattern": "\\S"},
		"password":   {"type": "string", "minLength": 1}
	}
}`

var loginSchema = mustCompile(loginRequestSchema)

func mustCompile(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic(fmt.Sprintf("compile login schema: %v", err))
	}
	return s
}

// ValidateCredentials checks a login request before it is sent. The returned
// error is a VALIDATION_FAILED StandardError naming the first offending field.
func ValidateCredentials(req models.LoginRequest) error {
	result, err := loginSchema.Validate(gojsonschema.NewGoLoader(req))
	if err != nil {
		return errors.NewValidationError("(root)", fmt.Sprintf("validation error: %v", err))
	}

	if !result.Valid() {
		descs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			descs[i] = fmt.Sprintf("%s: %s", desc.Field(), desc.Description())
		}
		return errors.NewValidationError(result.Errors()[0].Field(), strings.Join(descs, "; "))
	}

	if !IsValidURL(req.MoodleURL) {
		return errors.NewValidationError("moodle_url", fmt.Sprintf("%q is not a valid Moodle URL", req.MoodleURL))
	}

	return nil
}
