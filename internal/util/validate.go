package util

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"asset-console/internal/model"
)

var assetNamePattern = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	_ = v.RegisterValidation("assetname", func(fl validator.FieldLevel) bool {
		return assetNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateStruct checks validate tags and reports every failing field as a
// *model.InputError.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := &model.InputError{Fields: make([]model.FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, model.FieldError{Field: fe.Field(), Rule: describeRule(fe)})
	}
	return out
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "assetname":
		return "may only contain letters, digits and spaces"
	default:
		return "is invalid"
	}
}

// IsAssetName reports whether name is acceptable for an asset or signal.
func IsAssetName(name string) bool {
	return name != "" && len([]rune(name)) <= 30 && assetNamePattern.MatchString(name)
}
