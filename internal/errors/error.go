package errors

import (
	"errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryRuntime  Category = "runtime"
	CategoryInternal Category = "internal"
	CategoryConfig   Category = "config"
	CategoryCLI      Category = "cli"
)

// Diagnostic is a coded error with an explanation, a fix hint and a link.
type Diagnostic struct {
	// Code is a unique error identifier (e.g., "R001").
	Code string

	// Category is the error type (runtime, config, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Attrs are key/value pairs describing where the error happened
	// (resource id, effect name, config field).
	Attrs []Attr

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Attr is one piece of diagnostic context.
type Attr struct {
	Key   string
	Value string
}

// Error implements the error interface.
func (e *Diagnostic) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Diagnostic) Unwrap() error {
	return e.Wrapped
}

// With adds a key/value attribute.
func (e *Diagnostic) With(key string, value any) *Diagnostic {
	e.Attrs = append(e.Attrs, Attr{Key: key, Value: fmt.Sprint(value)})
	return e
}

// WithSuggestion adds a fix suggestion.
func (e *Diagnostic) WithSuggestion(s string) *Diagnostic {
	e.Suggestion = s
	return e
}

// WithDetail replaces the detailed explanation.
func (e *Diagnostic) WithDetail(d string) *Diagnostic {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *Diagnostic) Wrap(err error) *Diagnostic {
	e.Wrapped = err
	return e
}

// New creates a Diagnostic from a registered error code.
func New(code string) *Diagnostic {
	template, ok := registry[code]
	if !ok {
		return &Diagnostic{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Diagnostic{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		DocURL:   template.DocURL,
	}
}

// Newf creates a Diagnostic with a formatted message and no code.
func Newf(category Category, format string, args ...any) *Diagnostic {
	return &Diagnostic{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps err in a Diagnostic with the given code.
// If err already is (or wraps) a Diagnostic, that Diagnostic is returned.
func FromError(err error, code string) *Diagnostic {
	if err == nil {
		return nil
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return New(code).Wrap(err)
}

// CodeOf returns the code of the first Diagnostic in err's chain.
func CodeOf(err error) string {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.Code
	}
	return ""
}
