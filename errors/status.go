package errors

import stderrors "errors"

// Framework status codes. Negative values are errors reported by the
// framework, zero is success and positive values are application failures.
const (
	StatusOK                = 0
	StatusFail              = 1
	StatusAbort             = -1
	StatusFileExists        = -2
	StatusAPINotFound       = -3
	StatusVerbNotFound      = -4
	StatusInvalidScope      = -9
	StatusNoReply           = -11
	StatusAlreadyExists     = -17
	StatusWatchdog          = -62
	StatusInvalidDataType   = -99
	StatusApplication       = -100
	StatusConnectionTimeout = -110
)

// StatusInfo returns the human readable reason for a status code.
func StatusInfo(status int) string {
	switch status {
	case StatusOK:
		return "Success"
	case StatusInvalidScope:
		return "Invalid Scope"
	case StatusNoReply:
		return "No Reply"
	case StatusAlreadyExists:
		return "Api already exist"
	case StatusWatchdog:
		return "Watchdog expire"
	case StatusConnectionTimeout:
		return "Connection timeout"
	case StatusFileExists:
		return "File exist"
	case StatusAPINotFound:
		return "Api not found"
	case StatusVerbNotFound:
		return "Verb not found"
	case StatusInvalidDataType:
		return "Invalid data type"
	case StatusApplication:
		return "subcall application error"
	default:
		return "Unknown"
	}
}

// As is errors.As from the standard library, re-exported so callers of this
// package do not need both imports.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Is is errors.Is from the standard library.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
