package transaction

import "errors"

// Error classes. Every error the engine returns matches exactly one of these
// through errors.Is.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrPolicyViolation    = errors.New("policy violation")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrVerificationFailed = errors.New("verification failed")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrInternal           = errors.New("internal error")
)

var (
	ErrInvalidAmount       = classified(ErrInvalidInput, "INVALID_AMOUNT")
	ErrMissingField        = classified(ErrInvalidInput, "MISSING_REQUIRED_FIELD")
	ErrMissingReference    = classified(ErrInvalidInput, "MISSING_TRANSACTION_REFERENCE")
	ErrInvalidDateRange    = classified(ErrInvalidInput, "INVALID_DATE_RANGE")
	ErrUnknownPlayer       = classified(ErrNotFound, "UNKNOWN_PLAYER")
	ErrTransactionNotFound = classified(ErrNotFound, "TRANSACTION_NOT_FOUND")
	ErrAmountBelowMinimum  = classified(ErrPolicyViolation, "AMOUNT_BELOW_MINIMUM")
	ErrAmountAboveMaximum  = classified(ErrPolicyViolation, "AMOUNT_ABOVE_MAXIMUM")
	ErrBannedPlayer        = classified(ErrPolicyViolation, "BANNED_PLAYER")
	ErrDailyLimitExceeded  = classified(ErrPolicyViolation, "PLAYER_REACHED_DAILY_MAX_LIMIT")
	ErrInsufficientFunds   = classified(ErrPolicyViolation, "INSUFFICIENT_FUNDS")
	ErrInvalidTransition   = classified(ErrPolicyViolation, "INVALID_STATUS_TRANSITION")
	ErrPaymentNotVerified  = classified(ErrVerificationFailed, "PAYMENT_VERIFICATION_FAILED")
	ErrTransferNotVerified = classified(ErrVerificationFailed, "TRANSFER_VERIFICATION_FAILED")
	ErrSignatureMismatch   = classified(ErrInvalidSignature, "INVALID_CALLBACK_SIGNATURE")
	ErrMalformedPayload    = classified(ErrInvalidInput, "MALFORMED_CALLBACK_PAYLOAD")
	ErrGatewayDown         = classified(ErrGatewayUnavailable, "GATEWAY_UNAVAILABLE")
	ErrGatewayRejected     = classified(ErrGatewayUnavailable, "GATEWAY_REJECTED")
	ErrCompensationFailed  = classified(ErrInternal, "COMPENSATION_INCOMPLETE")
	ErrCreditFailed        = classified(ErrInternal, "BALANCE_CREDIT_INCOMPLETE")
	ErrStorage             = classified(ErrInternal, "STORAGE_FAILURE")
)

// codedError is a specific engine error that belongs to one class.
type codedError struct {
	class error
	code  string
}

func classified(class error, code string) error {
	return &codedError{class: class, code: code}
}

func (e *codedError) Error() string { return e.code }

func (e *codedError) Unwrap() error { return e.class }

// Code returns the machine readable code of err, or "" when err carries none.
func Code(err error) string {
	var ce *codedError
	if errors.As(err, &ce) {
		return ce.code
	}
	return ""
}

// Class returns the class sentinel err belongs to. Unclassified errors are
// treated as internal.
func Class(err error) error {
	for _, class := range []error{
		ErrInvalidInput,
		ErrNotFound,
		ErrPolicyViolation,
		ErrGatewayUnavailable,
		ErrVerificationFailed,
		ErrInvalidSignature,
		ErrInternal,
	} {
		if errors.Is(err, class) {
			return class
		}
	}
	return ErrInternal
}
