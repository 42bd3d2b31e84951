package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrAccountNotFound     = errors.New("account not found")
	ErrCodeNotFound        = errors.New("redeem code not found")
	ErrCodeAlreadyUsed     = errors.New("redeem code already used")
	ErrUnknownExperiment   = errors.New("unknown experiment")
	ErrForbidden           = errors.New("forbidden")
	ErrUpstreamFailure     = errors.New("vision service failed")
	ErrStorageFailure      = errors.New("storage unavailable")

	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account temporarily locked")
	ErrAccountExists       = errors.New("account already exists")
	ErrInvalidAmount       = errors.New("amount must be between 1 and 100")
	ErrInvalidCode         = errors.New("redeem code must be 6 to 64 characters")
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrArtifactExpired     = errors.New("artifact expired")
	ErrPlotAlreadyAttached = errors.New("plot already attached")
	ErrImageNotFound       = errors.New("image not found")
	ErrImageTooLarge       = errors.New("image exceeds maximum allowed size")
	ErrUnsupportedImage    = errors.New("unsupported image type")
	ErrRateLimited         = errors.New("too many requests")
	ErrLedgerClosed        = errors.New("ledger is shut down")
	ErrInvalidInput        = errors.New("invalid input")
)

// ErrorKind is the stable machine-readable name of a failure.
type ErrorKind string

const (
	KindInsufficientBalance ErrorKind = "insufficient_balance"
	KindAccountNotFound     ErrorKind = "account_not_found"
	KindCodeNotFound        ErrorKind = "code_not_found"
	KindCodeAlreadyUsed     ErrorKind = "code_already_used"
	KindUnknownExperiment   ErrorKind = "unknown_experiment"
	KindForbidden           ErrorKind = "forbidden"
	KindUpstreamFailure     ErrorKind = "upstream_failure"
	KindStorageFailure      ErrorKind = "storage_failure"
	KindNotFound            ErrorKind = "not_found"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindInvalidCredentials  ErrorKind = "invalid_credentials"
	KindAccountLocked       ErrorKind = "account_locked"
	KindAccountExists       ErrorKind = "account_exists"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindExpired             ErrorKind = "expired"
	KindConflict            ErrorKind = "conflict"
	KindImageTooLarge       ErrorKind = "image_too_large"
	KindRateLimited         ErrorKind = "rate_limited"
	KindUnavailable         ErrorKind = "unavailable"
	KindInternal            ErrorKind = "internal_error"
)

// kindTable is checked in order; the first sentinel matched by errors.Is wins.
var kindTable = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInsufficientBalance, KindInsufficientBalance},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrCodeNotFound, KindCodeNotFound},
	{ErrCodeAlreadyUsed, KindCodeAlreadyUsed},
	{ErrUnknownExperiment, KindUnknownExperiment},
	{ErrForbidden, KindForbidden},
	{ErrUpstreamFailure, KindUpstreamFailure},
	{ErrStorageFailure, KindStorageFailure},
	{ErrArtifactNotFound, KindNotFound},
	{ErrImageNotFound, KindNotFound},
	{ErrNotFound, KindNotFound},
	{ErrUnauthorized, KindUnauthorized},
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAccountLocked, KindAccountLocked},
	{ErrAccountExists, KindAccountExists},
	{ErrInvalidAmount, KindInvalidRequest},
	{ErrInvalidCode, KindInvalidRequest},
	{ErrUnsupportedImage, KindInvalidRequest},
	{ErrInvalidInput, KindInvalidRequest},
	{ErrArtifactExpired, KindExpired},
	{ErrPlotAlreadyAttached, KindConflict},
	{ErrImageTooLarge, KindImageTooLarge},
	{ErrRateLimited, KindRateLimited},
	{ErrLedgerClosed, KindUnavailable},
}

// Kind returns the machine-readable kind of err. Unclassified errors are KindInternal.
func Kind(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var rf *RefundFailedError
	if errors.As(err, &rf) {
		return Kind(rf.Original)
	}
	for _, k := range kindTable {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsTerminal reports whether err is a user-surfaceable failure that the core never retries.
func IsTerminal(err error) bool {
	switch Kind(err) {
	case KindInsufficientBalance, KindCodeNotFound, KindCodeAlreadyUsed,
		KindUnknownExperiment, KindForbidden, KindAccountNotFound:
		return true
	}
	return false
}

// StorageError marks err as a durable store failure for operation op.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, op, err)
}

// UpstreamError marks err as a vision collaborator failure.
func UpstreamError(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstreamFailure, err)
}

// RefundFailedError is returned when an extraction failed after its debit and the
// compensating refund could not be applied either. Both failures are kept; the
// original one decides the error kind.
type RefundFailedError struct {
	Original error
	Refund   error
}

func (e *RefundFailedError) Error() string {
	return fmt.Sprintf("%v (refund failed: %v)", e.Original, e.Refund)
}

func (e *RefundFailedError) Unwrap() []error {
	return []error{e.Original, e.Refund}
}
