package schema

import "fmt"

// FieldError names one schema-validation failure at a specific field path.
type FieldError struct {
	Path    string
	Message string
}

// ValidationError is raised by write paths on schema violation. Read paths
// never raise it — they return a Result with StatusInvalid instead.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("schema: validation failed at %s: %s", e.Fields[0].Path, e.Fields[0].Message)
	}
	return fmt.Sprintf("schema: validation failed (%d field errors)", len(e.Fields))
}
