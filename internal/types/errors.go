package types

import "errors"

var (
	ErrValidation    = errors.New("validation failed")
	ErrBuildFailed   = errors.New("build failed")
	ErrSigningFailed = errors.New("signing failed")
	ErrNetworkFailed = errors.New("network failed")
	ErrOnChainFailed = errors.New("on-chain execution failed")
	ErrTimedOut      = errors.New("confirmation timed out")

	ErrBusy        = errors.New("a transfer is already in progress")
	ErrInvalidStep = errors.New("operation not allowed in current step")
)

type ErrorKind string

const (
	KindValidation ErrorKind = "ValidationError"
	KindBuild      ErrorKind = "BuildFailed"
	KindSigning    ErrorKind = "SigningFailed"
	KindNetwork    ErrorKind = "NetworkFailed"
	KindOnChain    ErrorKind = "OnChainFailed"
	KindTimedOut   ErrorKind = "TimedOut"
	KindUnknown    ErrorKind = "Unknown"
)

// KindOf maps a wrapped error onto the taxonomy. Order matters: the most
// specific sentinel wins when several are wrapped.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrBuildFailed):
		return KindBuild
	case errors.Is(err, ErrSigningFailed):
		return KindSigning
	case errors.Is(err, ErrOnChainFailed):
		return KindOnChain
	case errors.Is(err, ErrTimedOut):
		return KindTimedOut
	case errors.Is(err, ErrNetworkFailed):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// FlowError is the display form of a failure, kept on the lifecycle state.
type FlowError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func NewFlowError(err error) *FlowError {
	if err == nil {
		return nil
	}
	return &FlowError{
		Kind:    KindOf(err),
		Message: err.Error(),
	}
}
