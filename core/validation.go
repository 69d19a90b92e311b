package core

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON name so errors line up with the request payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// ValidateCredentials checks login input. All failing fields are returned together.
func ValidateCredentials(c Credentials) error {
	return validateStruct(c)
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Reason: reasonForTag(fe.Tag())})
	}
	return out
}

func reasonForTag(tag string) Reason {
	switch tag {
	case "required":
		return ReasonRequired
	case "min":
		return ReasonTooShort
	case "max":
		return ReasonTooLong
	default:
		return ReasonInvalidFormat
	}
}
