package shared

import (
	"errors"
	"net/http"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"timesheets/internal/transport/http/api"
)

type ValidationIssue struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

var structValidator = newStructValidator()

// newStructValidator reports fields by their JSON names and adds the date
// and case-insensitive enum tags used by query structs.
func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", func(fl validator.FieldLevel) bool {
		_, err := ParseDate(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("oneofci", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		for _, candidate := range strings.Fields(fl.Param()) {
			if strings.EqualFold(value, candidate) {
				return true
			}
		}
		return false
	})
	return v
}

// ParseDate accepts YYYY-MM-DD or RFC3339.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if parsed, err := time.Parse(time.DateOnly, value); err == nil {
		return parsed, nil
	}
	return time.Parse(time.RFC3339, value)
}

// StructIssues runs validator tags on v and converts failures into
// validation issues keyed by JSON field name.
func StructIssues(v any) []ValidationIssue {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	issues := make([]ValidationIssue, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		issues = append(issues, ValidationIssue{Field: jsonPath(fe.Namespace()), Reason: reason(fe)})
	}
	return sortIssues(issues)
}

// DateRangeIssues flags a range whose end precedes its start. Zero values
// are open bounds.
func DateRangeIssues(startField string, start time.Time, endField string, end time.Time) []ValidationIssue {
	if start.IsZero() || end.IsZero() || !end.Before(start) {
		return nil
	}
	return sortIssues([]ValidationIssue{
		{Field: startField, Reason: "must be on or before " + endField},
		{Field: endField, Reason: "must be on or after " + startField},
	})
}

func FailValidation(w http.ResponseWriter, requestID string, issues []ValidationIssue) {
	api.FailWithDetails(
		w,
		http.StatusBadRequest,
		"validation_error",
		"payload validation failed",
		map[string]any{"fields": issues},
		requestID,
	)
}

func sortIssues(issues []ValidationIssue) []ValidationIssue {
	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Field == issues[j].Field {
			return issues[i].Reason < issues[j].Reason
		}
		return issues[i].Field < issues[j].Field
	})
	return issues
}

func jsonPath(namespace string) string {
	if _, path, found := strings.Cut(namespace, "."); found {
		return path
	}
	return namespace
}

func reason(fe validator.FieldError) string {
	numeric := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		numeric = true
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if numeric {
			return "must be at least " + fe.Param()
		}
		return "must contain at least " + fe.Param() + " item(s)"
	case "max":
		if numeric {
			return "must be at most " + fe.Param()
		}
		return "must be at most " + fe.Param() + " long"
	case "oneof", "oneofci":
		return "must be one of: " + strings.Join(strings.Fields(fe.Param()), ", ")
	case "date":
		return "must be a valid date in YYYY-MM-DD format"
	}
	return "failed " + fe.Tag() + " check"
}
