// Package errors provides structured, actionable error messages for headsync.
//
// Errors carry a stable code (e.g. "E101"), a category, a short message,
// and optional detail and hints. The CLI prints them with Format; library
// callers match them with errors.As or HasCode.
//
// # Error Categories
//
//   - config: headsync.json could not be read or is invalid
//   - rules: a rule table file failed to parse or declares a bad rule
//   - surface: applying a canonical set to a target failed
//   - cli: command-line usage problems
//
// Invalid tag declarations and unknown contribution IDs are not errors.
// They are filtered or ignored without being surfaced.
//
// # Usage
//
//	err := errors.New("E201").
//	    WithDetail(`rule "link" has no type`).
//	    WithSuggestion("Give every rule a non-empty type")
//
//	fmt.Println(err.Format())
package errors
