// Package xcallerr defines the error taxonomy shared by the dispatcher and
// its connections. Every error aborts the caller's transaction; nothing in
// this package is retried locally.
package xcallerr

import "errors"

// Code is the ABI-facing name of an error kind, independent of the Go
// error value that carries it (mirrors the taxonomy in the protocol spec).
type Code string

const (
	CodeOnlyAdmin               Code = "OnlyAdmin"
	CodeOnlyRelayer              Code = "OnlyRelayer"
	CodeOnlyXCall                Code = "OnlyXCall"
	CodeOnlyFeeHandler           Code = "OnlyFeeHandler"
	CodeOnlyCaller               Code = "OnlyCaller"
	CodeInvalidPayload           Code = "InvalidPayload"
	CodeInvalidSignature         Code = "InvalidSignature"
	CodeInsufficientSignatures   Code = "InsufficientSignatures"
	CodeDuplicateMessage         Code = "DuplicateMessage"
	CodeProtocolViolation        Code = "ProtocolViolation"
	CodeInvalidRequestId         Code = "InvalidRequestId"
	CodeCallRequestNotFound      Code = "CallRequestNotFound"
	CodeDataMismatch             Code = "DataMismatch"
	CodeRollbackNotEnabled       Code = "RollbackNotEnabled"
	CodeMaxDataSizeExceeded      Code = "MaxDataSizeExceeded"
	CodeMaxRollbackSizeExceeded  Code = "MaxRollbackSizeExceeded"
	CodeNoDefaultConnection      Code = "NoDefaultConnection"
	CodeNoRollbackData           Code = "NoRollbackData"
	CodeUninitialized            Code = "Uninitialized"
	CodeAlreadyInitialized       Code = "AlreadyInitialized"
	CodeValidatorAlreadyAdded    Code = "ValidatorAlreadyAdded"
	CodeValidatorNotFound        Code = "ValidatorNotFound"
	CodeThresholdExceeded        Code = "ThresholdExceeded"
)

// Error is a taxonomy-tagged error. Wrap additional context with fmt.Errorf
// and %w; CodeOf on the wrapped error still resolves via errors.As.
type Error struct {
	code Code
	msg  string
}

func (e *Error) Error() string { return string(e.code) + ": " + e.msg }

// CodeOf returns the taxonomy code for err, or "" if err does not carry one.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.code
	}
	return ""
}

func new_(code Code, msg string) error { return &Error{code: code, msg: msg} }

var (
	ErrOnlyAdmin              = new_(CodeOnlyAdmin, "caller is not admin")
	ErrOnlyRelayer             = new_(CodeOnlyRelayer, "caller is not the configured relayer")
	ErrOnlyXCall               = new_(CodeOnlyXCall, "caller is not the configured xcall address")
	ErrOnlyFeeHandler          = new_(CodeOnlyFeeHandler, "caller is not the configured fee handler")
	ErrOnlyCaller              = new_(CodeOnlyCaller, "caller does not match the original request's caller")
	ErrInvalidPayload          = new_(CodeInvalidPayload, "invalid wire payload")
	ErrInvalidSignature        = new_(CodeInvalidSignature, "signature does not recover to a known validator")
	ErrInsufficientSignatures  = new_(CodeInsufficientSignatures, "distinct signature count below threshold")
	ErrDuplicateMessage        = new_(CodeDuplicateMessage, "connection sequence already received")
	ErrProtocolViolation       = new_(CodeProtocolViolation, "request source network does not match claimed origin, or delivering connection is not authorized")
	ErrInvalidRequestId        = new_(CodeInvalidRequestId, "unknown request id")
	ErrCallRequestNotFound     = new_(CodeCallRequestNotFound, "no rollback recorded for sequence number")
	ErrDataMismatch            = new_(CodeDataMismatch, "supplied data does not match stored request")
	ErrRollbackNotEnabled      = new_(CodeRollbackNotEnabled, "rollback is not enabled for this sequence number")
	ErrMaxDataSizeExceeded     = new_(CodeMaxDataSizeExceeded, "data exceeds MAX_DATA_SIZE")
	ErrMaxRollbackSizeExceeded = new_(CodeMaxRollbackSizeExceeded, "rollback exceeds MAX_ROLLBACK_SIZE")
	ErrNoDefaultConnection     = new_(CodeNoDefaultConnection, "no default connection configured for network")
	ErrNoRollbackData          = new_(CodeNoRollbackData, "rollback requested by an account that cannot receive callbacks")
	ErrUninitialized           = new_(CodeUninitialized, "dispatcher has not been initialized")
	ErrAlreadyInitialized      = new_(CodeAlreadyInitialized, "dispatcher is already initialized")
	ErrValidatorAlreadyAdded   = new_(CodeValidatorAlreadyAdded, "validator already present in the set")
	ErrValidatorNotFound       = new_(CodeValidatorNotFound, "validator not present in the set")
	ErrThresholdExceeded       = new_(CodeThresholdExceeded, "threshold would exceed the number of validators in the set")
)
