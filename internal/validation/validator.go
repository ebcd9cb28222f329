// Package validation checks request payloads and turns failures into
// apperr.ValidationError issues keyed by the JSON (or path) field name.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/iliyamo/planbox/internal/apperr"
)

// Checker is implemented by payloads with rules that struct tags cannot
// express. Its issues are appended after the tag violations.
type Checker interface {
	Check() []apperr.Issue
}

// Credentials marks auth payloads. Their generic issues are reported
// under the auth taxonomy instead of the generic one.
type Credentials interface {
	Credentials()
}

// Validator adapts validator/v10 to echo.Validator.
type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return &Validator{v: v}
}

// Validate runs tag rules and then Check. It returns nil or a
// *apperr.ValidationError carrying one issue per violated rule.
func (cv *Validator) Validate(i any) error {
	var issues []apperr.Issue

	if err := cv.v.Struct(i); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return err
		}
		for _, fe := range ves {
			issues = append(issues, apperr.Issue{Path: issuePath(fe), Message: message(fe)})
		}
	}
	if c, ok := i.(Checker); ok {
		issues = append(issues, c.Check()...)
	}
	if len(issues) == 0 {
		return nil
	}
	_, cred := i.(Credentials)
	return &apperr.ValidationError{Issues: issues, Credentials: cred}
}

// fieldName prefers the json name, then the echo path param and query names.
func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "param", "query"} {
		name, _, _ := strings.Cut(f.Tag.Get(key), ",")
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

// issuePath drops the root struct name from the namespace.
func issuePath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	label := Label(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "notblank":
		return label + " must not be empty"
	case "email":
		return "Invalid email"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", label, fe.Param())
	case "uuid", "uuid4":
		return label + " must be a valid id"
	default:
		return label + " is invalid"
	}
}

// Label turns a field name like "newPassword" into "New password".
func Label(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteByte(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
