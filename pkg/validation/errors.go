package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-opform/pkg/form"
)

// Issue is one failed field with its human readable message.
type Issue struct {
	Path    form.Path `json:"path"`
	Message string    `json:"message"`
}

// ErrorSet is the ordered list of issues produced by one validation run.
type ErrorSet []Issue

func (e ErrorSet) Error() string {
	if len(e) == 0 {
		return "validation: no issues"
	}
	parts := make([]string, 0, len(e))
	for _, issue := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return fmt.Sprintf("validation: %d invalid field(s): %s", len(e), strings.Join(parts, "; "))
}

// Messages maps each failed path to its message, ready for
// form.Registry.SetErrors.
func (e ErrorSet) Messages() map[form.Path]string {
	out := make(map[form.Path]string, len(e))
	for _, issue := range e {
		if _, exists := out[issue.Path]; exists {
			continue
		}
		out[issue.Path] = issue.Message
	}
	return out
}

// Has reports whether the set carries an issue for path.
func (e ErrorSet) Has(path form.Path) bool {
	for _, issue := range e {
		if issue.Path == path {
			return true
		}
	}
	return false
}

// AsErrorSet extracts an ErrorSet from err.
func AsErrorSet(err error) (ErrorSet, bool) {
	var set ErrorSet
	if errors.As(err, &set) {
		return set, true
	}
	return nil, false
}
