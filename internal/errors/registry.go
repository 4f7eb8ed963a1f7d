package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category Category
	Message  string
	Detail   string
	DocURL   string
}

const docBase = "https://vango.dev/docs/reactive/errors/"

// registry maps error codes to their templates.
var registry = map[string]Template{
	// Runtime (R001-R099)
	"R001": {
		Category: CategoryRuntime,
		Message:  "Stale resource access",
		Detail:   "The resource id no longer resolves to a live arena slot. The resource was disposed, usually because the scope that managed it was torn down while a handle to it was still held elsewhere.",
		DocURL:   docBase + "R001",
	},
	"R002": {
		Category: CategoryRuntime,
		Message:  "Resource type mismatch",
		Detail:   "A type-erased fetch asked for a different Go type than the one stored in the arena slot.",
		DocURL:   docBase + "R002",
	},
	"R003": {
		Category: CategoryInternal,
		Message:  "Effect stack underflow",
		Detail:   "An effect was popped from the tracking stack that was not on top of it. This is a runtime bug, not a usage error.",
		DocURL:   docBase + "R003",
	},
	"R004": {
		Category: CategoryRuntime,
		Message:  "Resource disposed twice",
		Detail:   "Dispose was called on a resource id that had already been released.",
		DocURL:   docBase + "R004",
	},
	"R005": {
		Category: CategoryRuntime,
		Message:  "Reactive budget exceeded",
		Detail:   "An effect kept re-triggering itself, or synchronous notifications nested deeper than the configured limit. The remaining work was dropped to break the cycle.",
		DocURL:   docBase + "R005",
	},
	"R006": {
		Category: CategoryRuntime,
		Message:  "Resource already managed",
		Detail:   "A resource can be registered for automatic disposal with at most one scope.",
		DocURL:   docBase + "R006",
	},
	"R007": {
		Category: CategoryRuntime,
		Message:  "Scope disposed",
		Detail:   "The scope has already been torn down. Resources and effects created in it are disposed immediately.",
		DocURL:   docBase + "R007",
	},

	// Config (C001-C099)
	"C001": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "reactive.json could not be read or parsed.",
		DocURL:   docBase + "C001",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
		Detail:   "A configuration field is outside its allowed range.",
		DocURL:   docBase + "C002",
	},
	"C003": {
		Category: CategoryConfig,
		Message:  "Configuration file not found",
		Detail:   "No reactive.json was found in the directory or any of its parents.",
		DocURL:   docBase + "C003",
	},

	// CLI (X001-X099)
	"X001": {
		Category: CategoryCLI,
		Message:  "Invalid command arguments",
		Detail:   "The command received arguments it cannot use.",
		DocURL:   docBase + "X001",
	},
}

// Codes returns all registered error codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template Template) {
	registry[code] = template
}
