// Package errs defines the fatal error kinds shared by the compiler, the VM
// and the bitmap codec, and maps each of them to a process exit code.
package errs

import "errors"

var (
	ErrInvalidInstruction  = errors.New("invalid instruction")
	ErrUnbalancedLoop      = errors.New("unbalanced loop")
	ErrDuplicateDefinition = errors.New("duplicate definition")
	ErrInvalidBitmap       = errors.New("invalid bitmap")
	ErrTapeBound           = errors.New("tape bound violation")
	ErrValueBound          = errors.New("value bound violation")

	ErrExpansionDepth     = errors.New("expansion depth exceeded")
	ErrRecursiveExpansion = errors.New("recursive expansion")
	ErrCallDepth          = errors.New("call depth exceeded")
)

// Exit codes reported by the commands. Anything that is not one of the kinds
// above (missing file, broken pipe...) exits with ExitIO.
const (
	ExitOK                  = 0
	ExitTapeBound           = 1
	ExitValueBound          = 2
	ExitIO                  = 3
	ExitUnbalancedLoop      = 4
	ExitInvalidBitmap       = 5
	ExitDuplicateDefinition = 6
	ExitExpansion           = 7
	ExitCallDepth           = 8
	ExitInvalidInstruction  = 42
)

var exitCodes = []struct {
	err  error
	code int
}{
	{ErrTapeBound, ExitTapeBound},
	{ErrValueBound, ExitValueBound},
	{ErrUnbalancedLoop, ExitUnbalancedLoop},
	{ErrInvalidBitmap, ExitInvalidBitmap},
	{ErrDuplicateDefinition, ExitDuplicateDefinition},
	{ErrExpansionDepth, ExitExpansion},
	{ErrRecursiveExpansion, ExitExpansion},
	{ErrCallDepth, ExitCallDepth},
	{ErrInvalidInstruction, ExitInvalidInstruction},
}

// ExitCode returns the exit status a command should use for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	for _, ec := range exitCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return ExitIO
}

// Kind returns the short name of the error kind carried by err, or "IOError"
// when err does not wrap one of the sentinels.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInstruction):
		return "InvalidInstruction"
	case errors.Is(err, ErrUnbalancedLoop):
		return "UnbalancedLoop"
	case errors.Is(err, ErrDuplicateDefinition):
		return "DuplicateDefinition"
	case errors.Is(err, ErrInvalidBitmap):
		return "InvalidBitmap"
	case errors.Is(err, ErrTapeBound):
		return "TapeBoundViolation"
	case errors.Is(err, ErrValueBound):
		return "ValueBoundViolation"
	case errors.Is(err, ErrExpansionDepth), errors.Is(err, ErrRecursiveExpansion):
		return "ExpansionError"
	case errors.Is(err, ErrCallDepth):
		return "CallDepthExceeded"
	}
	return "IOError"
}
