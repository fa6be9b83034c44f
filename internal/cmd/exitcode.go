package cmd

import (
	"errors"

	"github.com/Alia5/HIDRA/profile"
)

// Exit codes of the CLI surface.
const (
	ExitOK              = 0
	ExitRuntimeError    = 1
	ExitProfileNotFound = 2
	ExitProfileExists   = 3
	ExitInvalidArgument = 4
)

// ExitCode maps an error returned by a command onto the CLI exit code
// contract.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, profile.ErrNotFound):
		return ExitProfileNotFound
	case errors.Is(err, profile.ErrAlreadyExists):
		return ExitProfileExists
	case errors.Is(err, profile.ErrInvalidMapping):
		return ExitInvalidArgument
	default:
		return ExitRuntimeError
	}
}
