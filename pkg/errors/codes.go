package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Infrastructure error codes.
const (
	ErrCodeSearchError    ErrorCode = "INFRA_001"
	ErrCodeStorageError   ErrorCode = "INFRA_002"
	ErrCodeMessagingError ErrorCode = "INFRA_003"
	ErrCodeGraphError     ErrorCode = "INFRA_004"
)

// Claim module error codes.
const (
	ErrCodeClaimTextEmpty       ErrorCode = "CLAIM_001"
	ErrCodeClaimOverrideInvalid ErrorCode = "CLAIM_002"
	ErrCodeTaggingFailed        ErrorCode = "CLAIM_003"
	ErrCodeGrammarInvalid       ErrorCode = "CLAIM_004"
	ErrCodeClaimNotFound        ErrorCode = "CLAIM_005"
	ErrCodeVocabularyInvalid    ErrorCode = "CLAIM_006"
)

// Aliases.
const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeSearchError:    http.StatusBadGateway,
	ErrCodeStorageError:   http.StatusBadGateway,
	ErrCodeMessagingError: http.StatusBadGateway,
	ErrCodeGraphError:     http.StatusBadGateway,

	ErrCodeClaimTextEmpty:       http.StatusBadRequest,
	ErrCodeClaimOverrideInvalid: http.StatusBadRequest,
	ErrCodeTaggingFailed:        http.StatusInternalServerError,
	ErrCodeGrammarInvalid:       http.StatusInternalServerError,
	ErrCodeClaimNotFound:        http.StatusNotFound,
	ErrCodeVocabularyInvalid:    http.StatusInternalServerError,
}

// ErrorCodeMessage holds the default message for each code.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeSearchError:    "search backend error",
	ErrCodeStorageError:   "object storage error",
	ErrCodeMessagingError: "messaging error",
	ErrCodeGraphError:     "graph database error",

	ErrCodeClaimTextEmpty:       "claim text is empty",
	ErrCodeClaimOverrideInvalid: "invalid claim number or dependency override",
	ErrCodeTaggingFailed:        "part-of-speech tagging failed",
	ErrCodeGrammarInvalid:       "invalid chunk grammar",
	ErrCodeClaimNotFound:        "claim not found",
	ErrCodeVocabularyInvalid:    "invalid vocabulary",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
