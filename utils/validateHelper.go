package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// NewValidator returns a validator that reports json field names and knows
// the "decimal" tag (string field holding an exact decimal number).
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("decimal", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if s == "" {
			return true
		}
		_, err := decimal.NewFromString(s)
		return err == nil
	})
	return v
}

// ProcessValidationErrors maps each failing field path (without the root
// struct name, e.g. "line_items[1].price") to the failed tag.
func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["_"] = err.Error()
		return errorResponse
	}

	for _, ve := range validationErrors {
		path := ve.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		errorResponse[path] = describeTag(ve)
	}
	return errorResponse
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must be at least " + fe.Param()
	case "decimal":
		return "must be a decimal number"
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return fe.Tag()
	}
}
