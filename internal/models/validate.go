package models

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidContact is returned by ValidateContact for a missing or malformed field.
var ErrInvalidContact = errors.New("invalid contact details")

const (
	minPhoneDigits = 10
	maxPhoneDigits = 15
	// Formatting characters people type between digit groups.
	phoneSeparators = " -().\t"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("phone_number", validatePhoneNumber); err != nil {
		panic(err)
	}
}

func validatePhoneNumber(fl validator.FieldLevel) bool {
	_, ok := NormalizePhone(fl.Field().String())
	return ok
}

// ValidateContact checks the named ContactInfo fields (Go field names), or every
// field when none are given. The first failing field is reported by its JSON name.
func ValidateContact(c ContactInfo, fields ...string) error {
	var err error
	if len(fields) == 0 {
		err = validate.Struct(c)
	} else {
		err = validate.StructPartial(c, fields...)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidContact, verrs[0].Field())
	}
	return err
}

// NormalizePhone strips separators from a phone number, keeping a leading '+'.
// Letters or a digit count outside 10..15 make it invalid.
func NormalizePhone(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	prefix := ""
	if rest, ok := strings.CutPrefix(s, "+"); ok {
		prefix, s = "+", rest
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case strings.ContainsRune(phoneSeparators, r):
		default:
			return "", false
		}
	}
	if n := digits.Len(); n < minPhoneDigits || n > maxPhoneDigits {
		return "", false
	}
	return prefix + digits.String(), true
}
