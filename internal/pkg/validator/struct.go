package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	playground "github.com/go-playground/validator/v10"
)

var (
	structValidator *playground.Validate
	initOnce        sync.Once
)

func instance() *playground.Validate {
	initOnce.Do(func() {
		v := playground.New(playground.WithRequiredStructEnabled())

		// Report json field names instead of Go field names.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		_ = v.RegisterValidation("hhmm", func(fl playground.FieldLevel) bool {
			return IsValidClock(fl.Field().String())
		})
		_ = v.RegisterValidation("tzname", func(fl playground.FieldLevel) bool {
			return IsValidTimezone(fl.Field().String())
		})

		structValidator = v
	})
	return structValidator
}

// ValidateStruct runs the `validate` struct tags of s and converts failures
// into ValidationErrors keyed by json field name.
func ValidateStruct(s interface{}) error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("failed to validate struct: %w", err)
	}

	var errs ValidationErrors
	for _, fe := range fieldErrs {
		errs.Add(fieldPath(fe), message(fe))
	}
	return errs
}

// fieldPath strips the root struct name: "UpdateSettingsRequest.working_days[0]" -> "working_days[0]".
func fieldPath(fe playground.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe playground.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "unique":
		return fmt.Sprintf("%s must not contain duplicates", field)
	case "hhmm":
		return fmt.Sprintf("%s must be in HH:MM format", field)
	case "tzname":
		return fmt.Sprintf("%s must be a valid IANA timezone", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
