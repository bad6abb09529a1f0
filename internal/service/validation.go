package service

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/cardioml-web/internal/domain"
	"github.com/go-playground/validator/v10"
)

var fieldLabels = map[string]string{
	"patient_name": "Patient name",
	"age":          "Age",
	"gender":       "Gender",
	"height":       "Height",
	"weight":       "Weight",
	"ap_hi":        "Systolic BP",
	"ap_lo":        "Diastolic BP",
	"chol":         "Cholesterol level",
	"gluc":         "Glucose level",
	"smoke":        "Smoking status",
	"alcohol":      "Alcohol intake",
	"active":       "Physical activity",
}

// InputValidator checks an AssessmentInput against the form's value domains.
type InputValidator struct {
	validate *validator.Validate
}

// NewInputValidator creates a validator that reports fields by their form names.
func NewInputValidator() *InputValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &InputValidator{validate: v}
}

// Validate returns the first domain violation as a ValidationError, or nil.
func (iv *InputValidator) Validate(input domain.AssessmentInput) error {
	err := iv.validate.Struct(input)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating assessment input: %w", err)
	}

	messages := iv.FormatValidationErrors(verrs)
	fields := make([]string, 0, len(messages))
	for f := range messages {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	first := verrs[0]
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, messages[f])
	}
	return domain.NewValidationError(first.Field(), strings.Join(parts, "; "), first.Value())
}

// FormatValidationErrors maps each failing field to a readable message.
func (iv *InputValidator) FormatValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, e := range verrs {
		field := e.Field()
		label := fieldLabels[field]
		if label == "" {
			label = field
		}
		switch e.Tag() {
		case "required":
			out[field] = label + " is required"
		case "gte":
			out[field] = label + " must be at least " + e.Param()
		case "lte":
			out[field] = label + " must be at most " + e.Param()
		case "oneof":
			out[field] = label + " must be one of " + strings.ReplaceAll(e.Param(), " ", ", ")
		default:
			out[field] = label + " is invalid"
		}
	}
	return out
}
