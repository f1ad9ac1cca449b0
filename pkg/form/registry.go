package form

import (
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrUnknownField is returned when a path does not name a declared field.
	ErrUnknownField = errors.New("form: unknown field")
	// ErrInvalidValue is returned when a value is neither a string nor an
	// allowed nil.
	ErrInvalidValue = errors.New("form: invalid value")
)

// Registry tracks the current value and error message of every declared
// field. It is safe for concurrent use: the address lookup writes into it
// from its own goroutine while front ends read and edit.
type Registry struct {
	mu     sync.RWMutex
	fields []Field
	index  map[Path]int
	values map[Path]any
	errors map[Path]string
}

// NewRegistry declares the fields of a form. Every field starts empty.
func NewRegistry(fields ...Field) (*Registry, error) {
	r := &Registry{
		fields: make([]Field, 0, len(fields)),
		index:  make(map[Path]int, len(fields)),
		values: make(map[Path]any, len(fields)),
		errors: make(map[Path]string),
	}
	for _, field := range fields {
		if field.Path.IsZero() {
			return nil, fmt.Errorf("form: field %q has an empty path", field.Label)
		}
		if _, exists := r.index[field.Path]; exists {
			return nil, fmt.Errorf("form: duplicate field %s", field.Path)
		}
		r.index[field.Path] = len(r.fields)
		r.fields = append(r.fields, field)
		r.values[field.Path] = field.Empty()
	}
	return r, nil
}

// Fields returns the declared fields in declaration order.
func (r *Registry) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Field looks up a declaration by path.
func (r *Registry) Field(path Path) (Field, bool) {
	idx, ok := r.index[path]
	if !ok {
		return Field{}, false
	}
	return r.fields[idx], true
}

// Value returns the current value of a field.
func (r *Registry) Value(path Path) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	value, ok := r.values[path]
	return value, ok
}

// StringValue returns the current value as a string; nil reads as "".
func (r *Registry) StringValue(path Path) string {
	value, _ := r.Value(path)
	s, _ := value.(string)
	return s
}

// SetFieldValue overwrites the value of a single field.
func (r *Registry) SetFieldValue(path Path, value any) error {
	if err := r.check(path, value); err != nil {
		return err
	}

	r.mu.Lock()
	r.values[path] = value
	r.mu.Unlock()
	return nil
}

// Load copies every declared field present in data into the registry.
// Keys that do not name a declared field are ignored. Nothing is written
// when any value is rejected.
func (r *Registry) Load(data Data) error {
	pending := make(map[Path]any, len(r.fields))
	for _, field := range r.fields {
		value, ok := data.Get(field.Path)
		if !ok {
			continue
		}
		if err := r.check(field.Path, value); err != nil {
			return err
		}
		pending[field.Path] = value
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for path, value := range pending {
		r.values[path] = value
	}
	return nil
}

func (r *Registry) check(path Path, value any) error {
	field, ok := r.Field(path)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, path)
	}
	switch value.(type) {
	case string:
	case nil:
		if !field.Nullable {
			return fmt.Errorf("%w: %s is not nullable", ErrInvalidValue, path)
		}
	default:
		return fmt.Errorf("%w: %s expects a string, got %T", ErrInvalidValue, path, value)
	}
	return nil
}

// GetData returns the whole form as a nested payload.
func (r *Registry) GetData() Data {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data := make(Data)
	for _, field := range r.fields {
		// Paths were validated on declaration; Set cannot fail here.
		_ = data.Set(field.Path, r.values[field.Path])
	}
	return data
}

// SetErrors replaces every error message. A nil or empty mapping clears
// all errors. Messages for undeclared paths are kept so they are not lost.
func (r *Registry) SetErrors(messages map[Path]string) {
	next := make(map[Path]string, len(messages))
	for path, message := range messages {
		if message == "" {
			continue
		}
		next[path] = message
	}

	r.mu.Lock()
	r.errors = next
	r.mu.Unlock()
}

// ClearErrors drops every error message.
func (r *Registry) ClearErrors() {
	r.SetErrors(nil)
}

// Error returns the message attached to a field, if any.
func (r *Registry) Error(path Path) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.errors[path]
}

// Errors returns a copy of all error messages.
func (r *Registry) Errors() map[Path]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[Path]string, len(r.errors))
	for path, message := range r.errors {
		out[path] = message
	}
	return out
}

// Reset puts every field back to its empty value. Errors are untouched.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, field := range r.fields {
		r.values[field.Path] = field.Empty()
	}
}
