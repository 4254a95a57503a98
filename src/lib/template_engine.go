package lib

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"
	"unicode/utf8"
)

// templateFuncs are available to every notification template.
var templateFuncs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("$%.2f", v) },
	"upper": strings.ToUpper,
	"title": func(s string) string {
		r, size := utf8.DecodeRuneInString(s)
		if size == 0 {
			return s
		}
		return string(unicode.ToUpper(r)) + s[size:]
	},
}

// TemplateEngine provides template execution with validation and error handling.
type TemplateEngine struct {
	logger *Logger
}

// NewTemplateEngine creates a new template engine.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{
		logger: NewLogger("template"),
	}
}

// Execute executes a template string with the provided data.
func (te *TemplateEngine) Execute(templateStr string, data interface{}) (string, error) {
	if templateStr == "" {
		return "", TemplateError("template string cannot be empty")
	}

	// Parse the template
	tmpl, err := template.New("notification").Funcs(templateFuncs).Parse(templateStr)
	if err != nil {
		te.logger.Error("Template parsing failed", map[string]interface{}{
			"template": templateStr,
			"error":    err.Error(),
		})
		return "", WrapError(err, ErrCodeTemplate, "failed to parse template")
	}

	// Execute the template
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		te.logger.Error("Template execution failed", map[string]interface{}{
			"template": templateStr,
			"data":     data,
			"error":    err.Error(),
		})
		return "", WrapError(err, ErrCodeTemplate, "failed to execute template")
	}

	result := buf.String()

	te.logger.Debug("Template executed successfully", map[string]interface{}{
		"template": templateStr,
		"result":   result,
	})

	return result, nil
}

// Validate validates a template string without executing it.
func (te *TemplateEngine) Validate(templateStr string) error {
	if templateStr == "" {
		return TemplateError("template string cannot be empty")
	}

	_, err := template.New("validation").Funcs(templateFuncs).Parse(templateStr)
	if err != nil {
		te.logger.Warn("Template validation failed", map[string]interface{}{
			"template": templateStr,
			"error":    err.Error(),
		})
		return WrapError(err, ErrCodeTemplate, "template validation failed")
	}

	te.logger.Debug("Template validated successfully", map[string]interface{}{
		"template": templateStr,
	})

	return nil
}

// Global template engine instance.
var globalTemplateEngine = NewTemplateEngine()

// ExecuteTemplate executes a template using the global engine.
func ExecuteTemplate(templateStr string, data interface{}) (string, error) {
	return globalTemplateEngine.Execute(templateStr, data)
}

// ValidateTemplate validates a template using the global engine.
func ValidateTemplate(templateStr string) error {
	return globalTemplateEngine.Validate(templateStr)
}

