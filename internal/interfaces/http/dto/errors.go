package dto

import "net/http"

// Error codes returned in the error envelope.
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal    = "ERR_INTERNAL"
	ErrCodeUnavailable = "ERR_SERVICE_UNAVAILABLE"

	ErrCodeValidation   = "ERR_VALIDATION"
	ErrCodeBadRequest   = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeTooLarge     = "ERR_REQUEST_TOO_LARGE"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"

	ErrCodeBillingRunInProgress = "ERR_BILLING_RUN_IN_PROGRESS"
	ErrCodeChargeAlreadyPaid    = "ERR_CHARGE_ALREADY_PAID"
)

var errorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:   http.StatusBadRequest,
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeTooLarge:     http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized: http.StatusUnauthorized,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeBillingRunInProgress: http.StatusConflict,
	ErrCodeChargeAlreadyPaid:    http.StatusConflict,
}

// GetHTTPStatus returns the HTTP status for an error code, 500 when unknown.
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodes maps shared.DomainError codes to envelope codes.
var domainErrorCodes = map[string]string{
	"NOT_FOUND":                 ErrCodeNotFound,
	"CONCURRENCY_CONFLICT":      ErrCodeConcurrencyConflict,
	"BILLING_RUN_IN_PROGRESS":   ErrCodeBillingRunInProgress,
	"CHARGE_ALREADY_PAID":       ErrCodeChargeAlreadyPaid,
	"INVALID_CHARGE_TRANSITION": ErrCodeInvalidState,
	"INVALID_CHARGE_AMOUNT":     ErrCodeInvalidInput,
	"INVALID_CHARGE_KEY":        ErrCodeInvalidInput,
}

// NormalizeErrorCode converts a domain error code into an envelope code.
// Codes that are already in ERR_ form, or unknown, are returned unchanged.
func NormalizeErrorCode(code string) string {
	if c, ok := domainErrorCodes[code]; ok {
		return c
	}
	return code
}
