// Package opform exposes the operation registration form through a small
// root API. Most callers only need NewOperationForm; the sub-packages hold
// the registry, validation, lookup and front ends.
package opform

import (
	"io/fs"

	"github.com/goliatone/go-opform/pkg/form"
	"github.com/goliatone/go-opform/pkg/operation"
	"github.com/goliatone/go-opform/pkg/submission"
	"github.com/goliatone/go-opform/pkg/web/view"
	"github.com/goliatone/go-opform/pkg/zipcode"
)

// Submission aliases submission.Submission for callers writing sinks.
type Submission = submission.Submission

// Result aliases submission.Result.
type Result = submission.Result

// Address aliases zipcode.Address.
type Address = zipcode.Address

// NewOperationForm builds an empty operation registry and a controller
// bound to it.
func NewOperationForm(options ...submission.Option) (*form.Registry, *submission.Controller, error) {
	reg, err := operation.NewRegistry()
	if err != nil {
		return nil, nil, err
	}
	return reg, submission.New(reg, options...), nil
}

// NewLookupClient exposes the CEP client constructor from the top-level
// module.
func NewLookupClient(options ...zipcode.Option) *zipcode.Client {
	return zipcode.New(options...)
}

// EmbeddedTemplates exposes the built-in HTML templates so callers can
// reuse or extend them without importing the view package directly.
func EmbeddedTemplates() fs.FS {
	return view.Templates()
}
