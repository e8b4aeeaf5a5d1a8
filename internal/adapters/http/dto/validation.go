package dto

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jsamuelsen/go-ambient-pipeline/internal/domain"
)

// ErrBinding marks a body that could not be decoded. It is always joined
// with a *domain.ValidationError, so problem details answers 400.
var ErrBinding = errors.New("binding failed")

// Validator is the shared validator for request bodies. Fields are reported
// by their JSON name.
var Validator = sync.OnceValue(func() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("uuid", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		return uuid.Validate(s) == nil
	})
	_ = v.RegisterValidation("notempty", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	return v
})

// Validatable request types add rules on top of their struct tags.
// Their error is returned unchanged when it is a domain.BusinessRuleError or
// ValidationError, and wrapped as a ValidationError otherwise. ProblemDetails
// renders both as a 400.
type Validatable interface {
	Validate() error
}

// BindAndValidate decodes the JSON body into v and runs ValidateAll.
func BindAndValidate(c *gin.Context, v any) error {
	if err := c.ShouldBindJSON(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBinding, domain.NewValidationError("body", err.Error()))
	}

	return ValidateAll(v)
}

// ValidateAll checks the struct tags of v, then its Validate method when it
// has one.
func ValidateAll(v any) error {
	if err := Validate(v); err != nil {
		return err
	}

	rules, ok := v.(Validatable)
	if !ok {
		return nil
	}

	err := rules.Validate()
	if err == nil || domain.IsBusinessRule(err) || domain.IsValidation(err) {
		return err
	}

	return domain.NewValidationError("", err.Error())
}

// Validate checks the struct tags of v. A single failing field is named in
// the returned *domain.ValidationError; several are listed in its message.
func Validate(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	fields := ValidationErrors(err)
	if len(fields) == 0 {
		return domain.NewValidationError("", err.Error())
	}

	names := slices.Sorted(maps.Keys(fields))
	if len(names) == 1 {
		return domain.NewValidationError(names[0], fields[names[0]])
	}

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(name + ": " + fields[name])
	}

	return domain.NewValidationError("", b.String())
}

// ValidationErrors maps each failing field to its message. Errors that did
// not come from the validator yield an empty map.
func ValidationErrors(err error) map[string]string {
	out := map[string]string{}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return out
	}

	for _, fe := range fieldErrs {
		out[fe.Field()] = validationMessage(fe)
	}

	return out
}

var tagMessages = map[string]string{
	"required": "this field is required",
	"notempty": "must not be empty",
	"email":    "must be a valid email address",
	"uuid":     "must be a valid UUID",
	"url":      "must be a valid URL",
	"oneof":    "must be one of: %s",
	"gt":       "must be greater than %s",
	"gte":      "must be greater than or equal to %s",
	"lt":       "must be less than %s",
	"lte":      "must be less than or equal to %s",
}

func validationMessage(fe validator.FieldError) string {
	switch tag := fe.Tag(); tag {
	case "min", "max":
		return minMaxMessage(tag, fe.Param(), fe.Kind())
	default:
		tmpl, ok := tagMessages[tag]
		if !ok {
			return "failed validation: " + tag
		}
		if strings.Contains(tmpl, "%s") {
			return fmt.Sprintf(tmpl, fe.Param())
		}
		return tmpl
	}
}

// minMaxMessage counts characters for strings and compares values for
// everything else. Slices read like numbers: "must be at least 1".
func minMaxMessage(tag, param string, kind reflect.Kind) string {
	bound := "at most"
	if tag == "min" {
		bound = "at least"
	}

	msg := "must be " + bound + " " + param
	if kind == reflect.String {
		msg += " characters"
	}

	return msg
}
