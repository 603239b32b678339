// Package errors provides standardized node errors and their BPMN representation.
package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeParse            ErrorCode = "PARSE_ERROR"
	ErrCodeInvalidParameter ErrorCode = "INVALID_PARAMETER"
	ErrCodeUpstreamRequest  ErrorCode = "UPSTREAM_REQUEST_FAILED"

	ErrCodeAuthConfigMissing ErrorCode = "AUTH_CONFIG_MISSING"
	ErrCodeAuthHeaderMissing ErrorCode = "AUTH_HEADER_MISSING"
	ErrCodeAuthMismatch      ErrorCode = "AUTH_MISMATCH"
	ErrCodeInvalidDelivery   ErrorCode = "INVALID_DELIVERY"

	ErrCodeCredentialNotFound ErrorCode = "CREDENTIAL_NOT_FOUND"
	ErrCodeCredentialInvalid  ErrorCode = "CREDENTIAL_INVALID"

	ErrCodeExecutionNotWaiting ErrorCode = "EXECUTION_NOT_WAITING"
	ErrCodeWaitingStoreFailed  ErrorCode = "WAITING_STORE_FAILED"

	ErrCodeEngineUnavailable ErrorCode = "ENGINE_UNAVAILABLE"
	ErrCodeEngineRejected    ErrorCode = "ENGINE_REJECTED"

	ErrCodeNodeOperation ErrorCode = "NODE_OPERATION_ERROR"
	ErrCodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the structured error every node returns to its host.
// ItemIndices lists the input items the error originated from.
type StandardError struct {
	Code        ErrorCode              `json:"code"`
	Message     string                 `json:"message"`
	Details     string                 `json:"details,omitempty"`
	Retryable   bool                   `json:"retryable"`
	ItemIndices []int                  `json:"itemIndices,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Cause       error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// Is matches another StandardError by code, so callers can test
// errors.Is(err, &StandardError{Code: ErrCodeParse}).
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is what the host adapter throws to the Zeebe engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func NewParseError(field string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeParse,
		Message:   fmt.Sprintf("Parameter '%s' is not valid JSON", field),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewInvalidParameterError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidParameter,
		Message:   "Render request is invalid",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUpstreamRequestError covers transport failures (statusCode 0) and non-2xx answers.
func NewUpstreamRequestError(statusCode int, body string, err error) *StandardError {
	stdErr := &StandardError{
		Code:      ErrCodeUpstreamRequest,
		Message:   "Rendering service request failed",
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
	if statusCode > 0 {
		stdErr.Metadata = map[string]interface{}{"statusCode": statusCode}
		stdErr.Details = fmt.Sprintf("status %d: %s", statusCode, body)
	} else if err != nil {
		stdErr.Details = err.Error()
	}
	return stdErr
}

func NewAuthConfigError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthConfigMissing,
		Message:   "No authentication data defined on node!",
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthMissingError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthHeaderMissing,
		Message:   "Authorization is required!",
		Timestamp: time.Now().UTC(),
	}
}

func NewAuthMismatchError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthMismatch,
		Message:   "Authorization data is wrong!",
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidDeliveryError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDelivery,
		Message:   "Delivered document is not valid!",
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func NewCredentialNotFoundError(credentialType, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialNotFound,
		Message:   "Credential not found",
		Details:   fmt.Sprintf("%s/%s", credentialType, id),
		Timestamp: time.Now().UTC(),
	}
}

func NewCredentialInvalidError(credentialType, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCredentialInvalid,
		Message:   fmt.Sprintf("Credential of type '%s' is invalid", credentialType),
		Details:   details,
		Timestamp: time.Now().UTC(),
	}
}

func NewExecutionNotWaitingError(token string) *StandardError {
	return &StandardError{
		Code:      ErrCodeExecutionNotWaiting,
		Message:   "No execution is waiting for this resume token",
		Details:   token,
		Timestamp: time.Now().UTC(),
	}
}

func NewWaitingStoreError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeWaitingStoreFailed,
		Message:   "Waiting execution store failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewEngineError wraps a failed Zeebe command. Transient failures are retryable.
func NewEngineError(operation string, err error, transient bool) *StandardError {
	code := ErrCodeEngineRejected
	if transient {
		code = ErrCodeEngineUnavailable
	}
	return &StandardError{
		Code:      code,
		Message:   fmt.Sprintf("Zeebe operation '%s' failed", operation),
		Details:   err.Error(),
		Retryable: transient,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// ==========================
// 4. Item index tagging
// ==========================

// WithItemIndex returns a copy of err tagged with itemIndex. Indices already
// carried by err are kept; err itself is never modified. Errors that are not
// StandardErrors are wrapped as NODE_OPERATION_ERROR.
func WithItemIndex(err error, itemIndex int) *StandardError {
	var src *StandardError
	if !stderrors.As(err, &src) {
		return &StandardError{
			Code:        ErrCodeNodeOperation,
			Message:     err.Error(),
			ItemIndices: []int{itemIndex},
			Timestamp:   time.Now().UTC(),
			Cause:       err,
		}
	}

	out := *src
	out.ItemIndices = mergeIndices(src.ItemIndices, itemIndex)
	if src.Metadata != nil {
		out.Metadata = make(map[string]interface{}, len(src.Metadata))
		for k, v := range src.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}

func mergeIndices(existing []int, idx int) []int {
	merged := make([]int, 0, len(existing)+1)
	seen := false
	for _, i := range existing {
		if i == idx {
			seen = true
		}
		merged = append(merged, i)
	}
	if !seen {
		merged = append(merged, idx)
	}
	sort.Ints(merged)
	return merged
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code of the first StandardError in err's chain.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

// ==========================
// 5. Error Conversion to BPMN
// ==========================

const bpmnCodePrefix = "OUTPUTROCKS_"

// GetRetryCount returns how many job retries the host adapter grants a code.
// Node errors are final; only adapter-side infrastructure failures retry.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeWaitingStoreFailed, ErrCodeEngineUnavailable:
		return 3
	case ErrCodeInternal:
		return 1
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Zeebe.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	if len(stdErr.ItemIndices) > 0 {
		vars["itemIndex"] = stdErr.ItemIndices[0]
		vars["itemIndices"] = stdErr.ItemIndices
	}

	return &BPMNError{
		Code:           bpmnCodePrefix + string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 6. Utility Functions
// ==========================

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "AUTH"):
		return "AUTH"
	case strings.HasPrefix(codeStr, "CREDENTIAL"):
		return "CREDENTIAL"
	case strings.HasPrefix(codeStr, "UPSTREAM"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "PARSE") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "WAITING"):
		return "WAITING"
	case strings.HasPrefix(codeStr, "ENGINE"):
		return "ENGINE"
	default:
		return "OTHER"
	}
}
