package errors

var (
	ErrValidation = &DomainError{
		Code:    "VALIDATION_ERROR",
		Message: "invalid request",
	}
	ErrNotFound = &DomainError{
		Code:    "NOT_FOUND",
		Message: "resource not found",
	}
	ErrStateConflict = &DomainError{
		Code:    "STATE_CONFLICT",
		Message: "action not valid for current status",
	}
	ErrInsufficientBalance = &DomainError{
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient wallet balance",
	}
	ErrGateway = &DomainError{
		Code:    "GATEWAY_ERROR",
		Message: "payment gateway call failed",
	}
	ErrVerificationTimeout = &DomainError{
		Code:    "VERIFICATION_TIMEOUT",
		Message: "could not verify payment status, check transaction history",
	}
	ErrGatewayReferenceMissing = &DomainError{
		Code:    "GATEWAY_REFERENCE_MISSING",
		Message: "gateway did not return a transaction reference, check transaction history",
	}
	ErrDisputeLocked = &DomainError{
		Code:    "DISPUTE_LOCKED",
		Message: "account is locked pending dispute resolution",
	}
	ErrActiveRequestExists = &DomainError{
		Code:    "ACTIVE_REQUEST_EXISTS",
		Message: "an active withdrawal request already exists",
	}
)
