package validation

import (
	ozzo "github.com/go-ozzo/ozzo-validation/v4"
)

// Required fails on a missing key, nil, or the empty string.
func Required(message string) ozzo.Rule {
	return ozzo.Required.Error(message)
}

// MaxLength fails when a string is longer than max characters. Empty values
// pass; combine it with Required to demand presence.
func MaxLength(max int, message string) ozzo.Rule {
	return ozzo.RuneLength(0, max).Error(message)
}

// String fails when a present value is not a string. A nil value passes, so
// nullable fields still defer presence checks to Required.
func String(message string) ozzo.Rule {
	return stringRule{err: ozzo.NewError("validation_is_string", message)}
}

type stringRule struct {
	err ozzo.Error
}

func (r stringRule) Validate(value any) error {
	switch value.(type) {
	case nil, string:
		return nil
	default:
		return r.err
	}
}
