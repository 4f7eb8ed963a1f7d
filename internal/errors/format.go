package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ANSI color codes for terminal output.
const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
	colorWhite = "\033[37m"
	colorGray  = "\033[90m"
	colorBold  = "\033[1m"
)

// colorEnabled controls whether ANSI colors are used.
var colorEnabled = true

// DisableColors disables ANSI color output.
func DisableColors() {
	colorEnabled = false
}

// EnableColors enables ANSI color output.
func EnableColors() {
	colorEnabled = true
}

// color wraps text in ANSI color codes if colors are enabled.
func color(code, text string) string {
	if !colorEnabled {
		return text
	}
	return code + text + colorReset
}

func red(text string) string   { return color(colorRed, text) }
func blue(text string) string  { return color(colorBlue, text) }
func cyan(text string) string  { return color(colorCyan, text) }
func white(text string) string { return color(colorWhite, text) }
func gray(text string) string  { return color(colorGray, text) }
func bold(text string) string  { return color(colorBold, text) }

// Format returns a multi-line error message for terminal display.
func (e *Diagnostic) Format() string {
	var b strings.Builder

	b.WriteString("\n")
	if e.Code != "" {
		b.WriteString(red(bold("ERROR ")))
		b.WriteString(white(bold(e.Code + ": ")))
		b.WriteString(white(e.Message))
	} else {
		b.WriteString(red(bold("ERROR: ")))
		b.WriteString(white(e.Message))
	}
	b.WriteString("\n\n")

	if len(e.Attrs) > 0 {
		for _, a := range e.Attrs {
			b.WriteString("  ")
			b.WriteString(cyan(a.Key + ": "))
			b.WriteString(a.Value)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Wrapped != nil {
		b.WriteString("  ")
		b.WriteString(gray("Cause: "))
		b.WriteString(e.Wrapped.Error())
		b.WriteString("\n\n")
	}

	if e.Detail != "" {
		for _, line := range wrapText(e.Detail, 70) {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if e.Suggestion != "" {
		b.WriteString("  ")
		b.WriteString(cyan("Hint: "))
		b.WriteString(e.Suggestion)
		b.WriteString("\n\n")
	}

	if e.DocURL != "" {
		b.WriteString("  ")
		b.WriteString(gray("Learn more: "))
		b.WriteString(blue(e.DocURL))
		b.WriteString("\n")
	}

	return b.String()
}

// FormatCompact returns a single-line form suitable for structured logs.
func (e *Diagnostic) FormatCompact() string {
	var b strings.Builder

	if e.Code != "" {
		b.WriteString(e.Code)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)

	for _, a := range e.Attrs {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value)
	}

	return b.String()
}

type jsonDiagnostic struct {
	Code       string            `json:"code,omitempty"`
	Category   Category          `json:"category"`
	Message    string            `json:"message"`
	Detail     string            `json:"detail,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	DocURL     string            `json:"docUrl,omitempty"`
}

// FormatJSON returns the error as a JSON object.
func (e *Diagnostic) FormatJSON() string {
	out := jsonDiagnostic{
		Code:       e.Code,
		Category:   e.Category,
		Message:    e.Message,
		Detail:     e.Detail,
		Suggestion: e.Suggestion,
		DocURL:     e.DocURL,
	}
	if len(e.Attrs) > 0 {
		out.Attrs = make(map[string]string, len(e.Attrs))
		for _, a := range e.Attrs {
			out.Attrs[a.Key] = a.Value
		}
	}
	if e.Wrapped != nil {
		out.Cause = e.Wrapped.Error()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf(`{"message":%q}`, e.Message)
	}
	return string(data)
}

// wrapText wraps text to the specified width.
func wrapText(text string, width int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= width {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var current strings.Builder

	for _, word := range words {
		if current.Len()+len(word)+1 > width {
			if current.Len() > 0 {
				lines = append(lines, current.String())
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		lines = append(lines, current.String())
	}

	return lines
}

// PrintError prints a formatted error to stderr.
func PrintError(err error) {
	if d, ok := err.(*Diagnostic); ok {
		fmt.Fprint(os.Stderr, d.Format())
	} else {
		fmt.Fprintf(os.Stderr, "\n%sERROR:%s %s\n\n", colorRed+colorBold, colorReset, err.Error())
	}
}
