// Package validator registers the domain tags used on request bodies.
package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/internal/rules/vitals"
)

// Register adds caregiver_role, shift_name and vital_param to v.
func Register(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"caregiver_role": func(fl validator.FieldLevel) bool {
			return model.Role(fl.Field().String()).Valid()
		},
		"shift_name": func(fl validator.FieldLevel) bool {
			return model.ShiftName(fl.Field().String()).Valid()
		},
		"vital_param": func(fl validator.FieldLevel) bool {
			return vitals.Parameter(fl.Field().String()).Valid()
		},
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

// New returns a validator with the domain tags registered.
func New() *validator.Validate {
	v := validator.New()
	if err := Register(v); err != nil {
		panic(err)
	}
	return v
}

// FieldErrors flattens validation failures into field -> message.
func FieldErrors(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(errs))
	for _, fe := range errs {
		out[strings.ToLower(fe.Field())] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "caregiver_role":
		return "is not a known caregiver role"
	case "shift_name":
		return "is not a known shift"
	case "vital_param":
		return "is not a known vital sign"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
