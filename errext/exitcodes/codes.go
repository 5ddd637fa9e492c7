// Package exitcodes contains the constants representing possible shadowfold
// exit error codes.
package exitcodes

// ExitCode is just a type representing a process exit code for shadowfold.
// Values should be between 0 and 125.
type ExitCode uint8

// list of exit codes used by the shadowfold CLI
const (
	GenericError     ExitCode = 1
	InvalidConfig    ExitCode = 2
	ResourceNotFound ExitCode = 4
)
