package schema

import "encoding/json"

// Status tags a Result.
type Status int

const (
	StatusValid Status = iota
	StatusInvalid
	StatusNotFound
)

// Result is the tagged outcome of a validated read.
type Result[T any] struct {
	Status Status
	Value  T
	Errors []FieldError
}

// Migration adjusts a row's raw field map before it is bound to its Go
// struct and validated against the latest schema. It operates on the raw
// map (not the bound struct) because Go structs lose JSON field-presence
// information on unmarshal — the field-presence versioning pattern can
// only be recognized before binding.
type Migration func(fields map[string]json.RawMessage) map[string]json.RawMessage

// ValueDefinition is the schema capability shared by table rows and KV
// values: validate the latest-version shape, optionally migrate older
// persisted shapes into it first.
type ValueDefinition[T any] struct {
	// Validate returns field errors for v, or nil if v is valid.
	Validate func(v T) []FieldError
	// Migrate is applied to raw fields before unmarshal, or nil if no
	// migration is needed (schema has never changed shape).
	Migrate Migration
}

// TableDefinition extends ValueDefinition with the function used to derive
// a row's id. The static row type is carried by the generic parameter T
// itself rather than a runtime capability.
type TableDefinition[T any] struct {
	ValueDefinition[T]
	RowID func(v T) string
}

// decode binds raw into T via Migrate (if set) then Validate, returning the
// appropriate tagged Result. raw == nil means "not found".
func decode[T any](raw map[string]json.RawMessage, def ValueDefinition[T]) Result[T] {
	if raw == nil {
		return Result[T]{Status: StatusNotFound}
	}

	fields := raw
	if def.Migrate != nil {
		fields = def.Migrate(fields)
	}

	data, err := json.Marshal(fields)
	if err != nil {
		return Result[T]{Status: StatusInvalid, Errors: []FieldError{{Message: err.Error()}}}
	}

	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return Result[T]{Status: StatusInvalid, Errors: []FieldError{{Message: err.Error()}}}
	}

	if def.Validate != nil {
		if errs := def.Validate(v); len(errs) > 0 {
			return Result[T]{Status: StatusInvalid, Value: v, Errors: errs}
		}
	}
	return Result[T]{Status: StatusValid, Value: v}
}

// fieldsOf marshals v to its JSON field map, the inverse of decode's bind
// step — used to spread a row/value across cells or a single KV entry.
func fieldsOf[T any](v T) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// oneOrMany makes the single-or-array calling convention explicit: a
// variadic parameter already collects single-or-many calls into one slice
// uniformly.
func oneOrMany[T any](v ...T) []T {
	return v
}
