package application

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/example/leaveflow/internal/ledger"
)

var (
	validatorOnce  sync.Once
	inputValidator *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			return snakeCase(field.Name)
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) any {
			d, ok := field.Interface().(ledger.Date)
			if !ok || d.IsZero() {
				return ""
			}
			return d.String()
		}, ledger.Date{})
		v.RegisterStructValidation(validateLeaveDates, LeaveRequestInput{})
		inputValidator = v
	})
	return inputValidator
}

func validateLeaveDates(sl validator.StructLevel) {
	input, ok := sl.Current().Interface().(LeaveRequestInput)
	if !ok || input.StartDate.IsZero() || input.EndDate.IsZero() {
		return
	}
	if err := (ledger.Span{Start: input.StartDate, End: input.EndDate}).Validate(); err != nil {
		sl.ReportError(input.EndDate, "end_date", "EndDate", "date_order", "")
	}
}

// validateStruct runs the struct tag rules and translates the failures into
// a ValidationError keyed by snake_case field names.
func validateStruct(input any) *ValidationError {
	vErr := &ValidationError{}
	err := getValidator().Struct(input)
	if err == nil {
		return vErr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		vErr.add("input", err.Error())
		return vErr
	}
	for _, fe := range fieldErrs {
		vErr.add(fe.Field(), fieldMessage(fe))
	}
	return vErr
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " is invalid"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(strings.Fields(fe.Param()), ", "))
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "date_order":
		return "end date must not be before start date"
	}
	return field + " is invalid"
}

func snakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func normalizeLeaveInput(input LeaveRequestInput) LeaveRequestInput {
	input.Reason = strings.TrimSpace(input.Reason)
	input.LeaveType = LeaveType(strings.ToLower(strings.TrimSpace(string(input.LeaveType))))
	return input
}
