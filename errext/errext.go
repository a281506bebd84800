// Package errext contains extensions for normal Go errors that are used in
// browserenv: the error kinds fatal operations report, user hints and exit
// codes for the command line tool.
package errext

import "errors"

// Error kinds returned by the operations that must not silently continue.
// Check them with errors.Is; concrete errors wrap them with context.
var (
	// ErrNotFound is returned when a required path or executable is missing.
	ErrNotFound = errors.New("not found")

	// ErrExtractionFailed is returned when a packaged extension cannot be
	// unpacked into its staging directory.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrInvalidArgument is returned when a browser flag is rejected.
	ErrInvalidArgument = errors.New("invalid argument")
)
