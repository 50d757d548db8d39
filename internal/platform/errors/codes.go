// Package errors provides structured domain errors for crabpot.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidMessage  Code = "INVALID_MESSAGE"
	CodeInvalidIdentity Code = "INVALID_IDENTITY"
	CodeInvalidTarget   Code = "INVALID_TARGET"
	CodeInvalidAmount   Code = "INVALID_AMOUNT"
	CodeInvalidQuery    Code = "INVALID_QUERY"
	CodeNotFound        Code = "NOT_FOUND"

	// Eligibility errors
	CodeBlocked             Code = "BLOCKED"
	CodeAlreadyParticipated Code = "ALREADY_PARTICIPATED"
	CodeAlreadyBlocked      Code = "ALREADY_BLOCKED"

	// Vault errors
	CodeInsufficientFunds Code = "INSUFFICIENT_FUNDS"
	CodeVaultOverflow     Code = "VAULT_OVERFLOW"

	// Infrastructure errors
	CodeStorageFailure Code = "STORAGE_FAILURE"
	CodeOutcomeFailure Code = "OUTCOME_FAILURE"
	CodeUnauthorized   Code = "UNAUTHORIZED"
)

// CallerCorrectable reports whether the caller can fix the request that
// produced the code. Causes of these errors are safe to show to callers.
func (c Code) CallerCorrectable() bool {
	switch c {
	case CodeInvalidMessage,
		CodeInvalidIdentity,
		CodeInvalidTarget,
		CodeInvalidAmount,
		CodeInvalidQuery:
		return true
	default:
		return false
	}
}

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	case CodeInvalidMessage,
		CodeInvalidIdentity,
		CodeInvalidTarget,
		CodeInvalidAmount,
		CodeInvalidQuery:
		return codes.InvalidArgument

	case CodeNotFound:
		return codes.NotFound

	case CodeBlocked:
		return codes.PermissionDenied

	case CodeAlreadyParticipated,
		CodeAlreadyBlocked:
		return codes.AlreadyExists

	case CodeInsufficientFunds,
		CodeVaultOverflow:
		return codes.FailedPrecondition

	case CodeStorageFailure:
		return codes.Unavailable

	case CodeUnauthorized:
		return codes.Unauthenticated

	default:
		return codes.Internal
	}
}
