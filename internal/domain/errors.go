package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrStoreUnavailable    = errors.New("state store unavailable")
	ErrRequiresReplacement = errors.New("requires replacement")
	ErrDependencyFailed    = errors.New("dependency failed")
	ErrCancelled           = errors.New("cancelled before start")
)

type ValidationReason string

const (
	ReasonLengthMismatch        ValidationReason = "LengthMismatch"
	ReasonMalformedCIDR         ValidationReason = "MalformedCidr"
	ReasonCIDROutOfRange        ValidationReason = "CidrOutOfRange"
	ReasonCIDROverlap           ValidationReason = "CidrOverlap"
	ReasonEmptyAvailabilityZone ValidationReason = "EmptyAvailabilityZone"
)

// ValidationError rejects a topology before any provider call is made.
type ValidationError struct {
	Reason ValidationReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// ProviderError is a failed provider call for a single node.
type ProviderError struct {
	Code      string
	Retryable bool
	Err       error
	// OrphanID is a resource the failed call created but could not remove.
	OrphanID string
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a ProviderError a caller may retry
// by running apply again.
func IsRetryable(err error) bool {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Retryable
	}
	return false
}

// StoreError wraps a backend failure so it matches ErrStoreUnavailable.
func StoreError(op, key string, err error) error {
	return fmt.Errorf("%s %s: %w: %w", op, key, ErrStoreUnavailable, err)
}
