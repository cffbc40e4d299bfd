// Package request binds and validates inbound HTTP payloads into errorbank
// errors the response builder can render.
package request

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/dialtone/pkg/errorbank"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a validator that reports json field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		for _, tag := range []string{"json", "query", "param"} {
			name := strings.SplitN(field.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return field.Name
	})
	return &Validator{validate: v}
}

// Validate satisfies echo.Validator.
func (v *Validator) Validate(i any) error {
	return v.validate.Struct(i)
}

// Body binds the JSON body into dst and validates it.
func Body(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindBody(c, dst); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	return validate(c, dst)
}

// Query binds query parameters into dst and validates it.
func Query(c echo.Context, dst any) error {
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, dst); err != nil {
		return errorbank.BadRequest("invalid query", errorbank.WithCause(err))
	}
	return validate(c, dst)
}

// ID parses a positive int64 path parameter.
func ID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errorbank.BadRequest("invalid "+name, errorbank.WithDetail(name, c.Param(name)))
	}
	return id, nil
}

func validate(c echo.Context, dst any) error {
	if c.Echo().Validator == nil {
		return nil
	}
	err := c.Validate(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fieldPath(fe)] = fe.Tag()
	}
	return errorbank.Validation("request validation failed", errorbank.WithDetails(details))
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}
