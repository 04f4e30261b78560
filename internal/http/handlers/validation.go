package handlers

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// maxIDLen matches the identifier bound enforced by the services.
const maxIDLen = 64

// RegisterValidations installs the custom tags used by request DTOs:
//
//	designid  opaque identifier, 1..64 runes, no control characters
//	tag       group/concept tag, at most 64 runes, no control characters
//
// Call it once with gin's validator engine (binding.Validator.Engine()).
func RegisterValidations(v *validator.Validate) error {
	if err := v.RegisterValidation("designid", validateDesignID); err != nil {
		return err
	}
	return v.RegisterValidation("tag", validateTag)
}

func validateDesignID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" {
		return false
	}
	return utf8.RuneCountInString(s) <= maxIDLen && !hasControl(s)
}

func validateTag(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return utf8.RuneCountInString(s) <= maxIDLen && !hasControl(s)
}

func hasControl(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}
