package form

// Kind hints which control a front end should use for a field.
type Kind string

const (
	KindText   Kind = "text"
	KindSelect Kind = "select"
	KindRadio  Kind = "radio"
	KindDate   Kind = "date"
	KindTime   Kind = "time"
)

// Option is one choice of a select or radio field.
type Option struct {
	Value string
	Label string
}

// Field declares a single addressable form control. Values are strings;
// nullable fields start out as nil (nothing chosen yet).
type Field struct {
	Path     Path
	Label    string
	Kind     Kind
	Options  []Option
	Nullable bool
	// Mask is an input mask hint such as "99999-999". It is never enforced.
	Mask string
	// Min is an optional lower bound hint for date controls.
	Min string
	// BlurLookup marks the field whose blur triggers the address lookup.
	BlurLookup bool
}

// Empty returns the value the field holds after a reset.
func (f Field) Empty() any {
	if f.Nullable {
		return nil
	}
	return ""
}

// OptionLabels lists option labels in declaration order.
func (f Field) OptionLabels() []string {
	out := make([]string, len(f.Options))
	for i, option := range f.Options {
		out[i] = option.Label
		if out[i] == "" {
			out[i] = option.Value
		}
	}
	return out
}

// OptionIndex returns the index of the option holding value, or -1.
func (f Field) OptionIndex(value string) int {
	for i, option := range f.Options {
		if option.Value == value {
			return i
		}
	}
	return -1
}
