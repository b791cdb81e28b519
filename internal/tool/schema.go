package tool

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// validateSchemaDocument confirms that a tool's Parameters() output is
// itself a well-formed JSON Schema document, so a malformed contract fails
// at registration time rather than silently accepting bad params later.
func validateSchemaDocument(schemaJSON string) error {
	loader := gojsonschema.NewStringLoader(schemaJSON)
	if _, err := gojsonschema.NewSchema(loader); err != nil {
		return fmt.Errorf("invalid parameter schema: %w", err)
	}
	return nil
}

// ValidateParams checks a raw params payload against a tool's declared
// JSON-Schema contract, returning the validation errors (if any) joined
// into one message.
func ValidateParams(schemaJSON, paramsJSON string) error {
	schemaLoader := gojsonschema.NewStringLoader(schemaJSON)
	docLoader := gojsonschema.NewStringLoader(paramsJSON)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msg := fmt.Sprintf("%d parameter validation error(s):", len(result.Errors()))
	for _, e := range result.Errors() {
		msg += "\n- " + e.String()
	}
	return fmt.Errorf("%s", msg)
}
