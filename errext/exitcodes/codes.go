// Package exitcodes contains the constants representing possible browserenv exit error codes.
package exitcodes

// ExitCode is just a type representing a process exit code for browserenv
type ExitCode uint8

// list of exit codes used by browserenv
const (
	Generic          ExitCode = 1
	InvalidConfig    ExitCode = 104
	NotFound         ExitCode = 105
	ExtensionStaging ExitCode = 106
)
