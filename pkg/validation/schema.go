package validation

import (
	"errors"
	"fmt"

	ozzo "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/goliatone/go-opform/pkg/form"
)

// FieldRules binds an ordered list of rules to one field path. Only the
// first failing rule of a field is reported.
type FieldRules struct {
	Path  form.Path
	Rules []ozzo.Rule
}

// Field is shorthand for building FieldRules.
func Field(path form.Path, rules ...ozzo.Rule) FieldRules {
	return FieldRules{Path: path, Rules: rules}
}

// Schema is a declarative, ordered rule set over a nested form payload.
type Schema struct {
	fields []FieldRules
}

// NewSchema keeps the declaration order; it is also the order of issues.
func NewSchema(fields ...FieldRules) Schema {
	out := make([]FieldRules, len(fields))
	copy(out, fields)
	return Schema{fields: out}
}

// Paths lists the validated paths in declaration order.
func (s Schema) Paths() []form.Path {
	out := make([]form.Path, len(s.fields))
	for i, field := range s.fields {
		out[i] = field.Path
	}
	return out
}

// Validate checks every field, without stopping at the first failure.
// It returns nil when the payload is valid and an ErrorSet when one or more
// rules fail. Any other error means a rule could not evaluate its input and
// must be treated as unexpected by callers.
func (s Schema) Validate(data form.Data) error {
	var issues ErrorSet
	for _, field := range s.fields {
		value, _ := data.Get(field.Path)
		err := ozzo.Validate(value, field.Rules...)
		if err == nil {
			continue
		}

		var ruleErr ozzo.Error
		if !errors.As(err, &ruleErr) {
			return fmt.Errorf("validation: %s: %w", field.Path, err)
		}
		issues = append(issues, Issue{
			Path:    field.Path,
			Message: ruleErr.Error(),
		})
	}

	if len(issues) == 0 {
		return nil
	}
	return issues
}
