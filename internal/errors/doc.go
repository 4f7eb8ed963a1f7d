// Package errors provides coded, actionable diagnostics for the reactive runtime.
//
// Every failure the runtime reports to a log or to a tool carries a short
// code that maps to a registered template:
//   - a one-line message describing the error
//   - a detailed explanation
//   - a documentation URL
//
// # Categories
//
//   - runtime: arena and effect failures (stale handles, type mismatches,
//     double disposal, budget trips)
//   - internal: invariant violations that indicate a broken runtime
//   - config: invalid reactive.json settings
//   - cli: command line usage errors
//
// # Usage
//
//	d := errors.New("R001").
//	    Wrap(err).
//	    WithSuggestion("Keep signal handles inside the scope that created them")
//
//	fmt.Println(d.Format())
//	// Output:
//	// ERROR R001: Stale resource access
//	//
//	//   The resource id no longer resolves to a live arena slot. ...
//	//
//	//   Hint: Keep signal handles inside the scope that created them
//	//
//	//   Learn more: https://vango.dev/docs/reactive/errors/R001
package errors
