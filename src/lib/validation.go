package lib

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// FieldIssue is a single schema violation at a field path such as
// "entries[3].cost".
type FieldIssue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (f FieldIssue) String() string {
	if f.Path == "" {
		return f.Reason
	}
	return f.Path + ": " + f.Reason
}

var (
	schemaOnce sync.Once
	schema     *validator.Validate

	// mapKeyPattern matches a bracketed map key in a validator namespace.
	mapKeyPattern = regexp.MustCompile(`\[([^\]]*)\]`)
)

// Schema returns the shared struct-tag validator. Field names come from the
// json tag, falling back to the yaml tag, so issue paths match the files.
//
// Custom tags:
//
//	notblank      non-empty after trimming spaces
//	between=lo hi numeric value in [lo, hi]
//	template      parses as a notification template
//	loglevel      DEBUG, INFO, WARN, ERROR or FATAL (any case)
func Schema() *validator.Validate {
	schemaOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(fieldName)
		mustRegister(v, "notblank", validators.NotBlank)
		mustRegister(v, "between", validateBetween)
		mustRegister(v, "template", func(fl validator.FieldLevel) bool {
			return ValidateTemplate(fl.Field().String()) == nil
		})
		mustRegister(v, "loglevel", func(fl validator.FieldLevel) bool {
			return IsLogLevel(fl.Field().String())
		})
		schema = v
	})
	return schema
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "yaml"} {
		name := strings.Split(f.Tag.Get(key), ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	return f.Name
}

func validateBetween(fl validator.FieldLevel) bool {
	bounds := strings.Fields(fl.Param())
	if len(bounds) != 2 {
		return false
	}
	lo, errLo := strconv.ParseFloat(bounds[0], 64)
	hi, errHi := strconv.ParseFloat(bounds[1], 64)
	if errLo != nil || errHi != nil {
		return false
	}

	var x float64
	switch f := fl.Field(); f.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		x = float64(f.Int())
	case reflect.Float32, reflect.Float64:
		x = f.Float()
	default:
		return false
	}
	return x >= lo && x <= hi
}

// Validator collects every violation in a document instead of stopping at
// the first one, so callers can report the full list.
type Validator struct {
	prefix string
	issues *[]FieldIssue
}

// NewValidator returns an empty Validator.
func NewValidator() *Validator {
	return &Validator{issues: &[]FieldIssue{}}
}

// Nested returns a Validator that records issues under path.
// Issues are shared with the parent.
func (v *Validator) Nested(path string) *Validator {
	return &Validator{prefix: v.join(path), issues: v.issues}
}

// Index is Nested for slice elements.
func (v *Validator) Index(path string, i int) *Validator {
	return v.Nested(fmt.Sprintf("%s[%d]", path, i))
}

func (v *Validator) join(path string) string {
	switch {
	case v.prefix == "":
		return path
	case path == "":
		return v.prefix
	case strings.HasPrefix(path, "["):
		return v.prefix + path
	default:
		return v.prefix + "." + path
	}
}

// Add records an issue at path.
func (v *Validator) Add(path, reason string) {
	*v.issues = append(*v.issues, FieldIssue{Path: v.join(path), Reason: reason})
}

// Struct checks s against its validate tags and records every failing field.
func (v *Validator) Struct(s interface{}) {
	err := Schema().Struct(s)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.Add("", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		v.Add(issuePath(fe.Namespace()), issueReason(fe))
	}
}

// issuePath turns "AlertConfig.perProjectLimits[acme]" into
// "perProjectLimits.acme". Slice indexes keep their brackets.
func issuePath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		namespace = namespace[i+1:]
	} else if i := strings.IndexByte(namespace, '['); i >= 0 {
		namespace = namespace[i:]
	}
	return mapKeyPattern.ReplaceAllStringFunc(namespace, func(m string) string {
		key := m[1 : len(m)-1]
		if _, err := strconv.Atoi(key); err == nil {
			return m
		}
		return "." + key
	})
}

func issueReason(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "required_if":
		parts := strings.Fields(param)
		if len(parts) == 2 {
			return fmt.Sprintf("is required when %s is %s", lowerFirst(parts[0]), parts[1])
		}
		return "is required"
	case "gte":
		return "must be >= " + param
	case "lte":
		return "must be <= " + param
	case "between":
		bounds := strings.Fields(param)
		if len(bounds) == 2 {
			return fmt.Sprintf("must be between %s and %s", bounds[0], bounds[1])
		}
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "loglevel":
		return "must be one of: DEBUG, INFO, WARN, ERROR, FATAL"
	case "datetime":
		switch param {
		case "2006-01-02":
			return "must be a YYYY-MM-DD date"
		case "2006-01":
			return "must be a YYYY-MM month"
		}
		return "must match layout " + param
	case "http_url":
		return "must be an http(s) URL"
	case "template":
		return "must be a valid template"
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// Issues returns the recorded issues.
func (v *Validator) Issues() []FieldIssue {
	return *v.issues
}

// Err returns nil when no issues were recorded, otherwise a VALIDATION_ERROR
// naming document and listing every issue.
func (v *Validator) Err(document string) error {
	issues := v.Issues()
	if len(issues) == 0 {
		return nil
	}

	lines := make([]string, len(issues))
	for i, issue := range issues {
		lines[i] = issue.String()
	}

	err := newErrorAt(2, ErrCodeValidation,
		fmt.Sprintf("%s validation failed: %s", document, strings.Join(lines, "; ")), nil)
	return err.WithContext("document", document).WithContext("issues", issues)
}

// ValidationIssues extracts the field issues carried by a validation error.
func ValidationIssues(err error) []FieldIssue {
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Context == nil {
		return nil
	}
	issues, _ := appErr.Context["issues"].([]FieldIssue)
	return issues
}

// ValidateStruct runs the schema over s and wraps any violations as a
// VALIDATION_ERROR for document.
func ValidateStruct(document string, s interface{}) error {
	v := NewValidator()
	v.Struct(s)
	return v.Err(document)
}
