package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validate      *validator.Validate
)

func optionsValidator() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		_ = v.RegisterValidation("absurl", func(fl validator.FieldLevel) bool {
			return isAbsoluteURL(fl.Field().String())
		})
		validate = v
	})
	return validate
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

// Validate checks opts before any transport is built. It returns nil or an error
// joining one *ConfigError per rejected field; errors.As extracts the first.
func Validate(opts Options) error {
	if opts == nil {
		return NewMissingFieldError("options", "")
	}
	co := opts.ClientSettings()
	if co == nil {
		return NewMissingFieldError("options", "")
	}

	var errs []error
	if err := optionsValidator().Struct(co); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return fmt.Errorf("validate options: %w", err)
		}
		for _, fe := range ves {
			errs = append(errs, toConfigError(fe))
		}
	}

	// An SDK may compute the address instead of storing it; check what it reports.
	if co.BaseURL != opts.GetBaseURL() && !isAbsoluteURL(opts.GetBaseURL()) {
		errs = append(errs, NewInvalidFieldError("baseUrl", "must be an absolute URL", opts.GetBaseURL(), nil))
	}

	if sv, ok := opts.(SelfValidator); ok {
		if err := sv.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func toConfigError(fe validator.FieldError) *ConfigError {
	field := fieldPath(fe.Namespace())
	value := fmt.Sprintf("%v", fe.Value())

	switch fe.Tag() {
	case "notblank", "required":
		return NewMissingFieldError(field, value)
	case "absurl":
		return NewInvalidFieldError(field, "must be an absolute URL", value, nil)
	case "oneof":
		return NewInvalidFieldError(field, "is not supported", value, strings.Fields(fe.Param()))
	case "gte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at least %s", fe.Param()), value, nil)
	case "lte":
		return NewInvalidFieldError(field, fmt.Sprintf("must be at most %s", fe.Param()), value, nil)
	default:
		return NewInvalidFieldError(field, fmt.Sprintf("failed %s validation", fe.Tag()), value, nil)
	}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
