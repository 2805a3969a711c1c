// Package errors provides standardized error handling for the assignment engine
// and its BPMN workflow integration.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Recommendation session errors
const (
	ErrCodeDataUnavailable     ErrorCode = "DATA_UNAVAILABLE"
	ErrCodeEstimationDegraded  ErrorCode = "ESTIMATION_DEGRADED"
	ErrCodeMissingLocationData ErrorCode = "MISSING_LOCATION_DATA"
	ErrCodeRouteServiceFailed  ErrorCode = "ROUTE_SERVICE_FAILED"
	ErrCodeRouteServiceTimeout ErrorCode = "ROUTE_SERVICE_TIMEOUT"
	ErrCodeSessionClosed       ErrorCode = "SESSION_CLOSED"
)

// Commit errors
const (
	ErrCodeJobNotFound            ErrorCode = "JOB_NOT_FOUND"
	ErrCodePersistenceError       ErrorCode = "PERSISTENCE_ERROR"
	ErrCodeStatusNotAssignable    ErrorCode = "STATUS_NOT_ASSIGNABLE"
	ErrCodeInvalidAssignmentInput ErrorCode = "INVALID_ASSIGNMENT_INPUT"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// Infrastructure errors
const (
	ErrCodeDatabaseConnectionFailed      ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeElasticsearchConnectionFailed ErrorCode = "ELASTICSEARCH_CONNECTION_FAILED"
	ErrCodeInternal                      ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// WithMetadata attaches a key to the error metadata and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// AsStandardError finds the first StandardError in err's chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain carries a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

// NewDataUnavailableError is raised when the candidate pool cannot be loaded.
func NewDataUnavailableError(organizationID string, err error) *StandardError {
	details := fmt.Sprintf("organizationId: %s", organizationID)
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeDataUnavailable,
		Message:   "Candidate data unavailable",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"organizationId": organizationID},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewJobUnavailableError is raised when a job cannot be read for reasons
// other than it not existing.
func NewJobUnavailableError(jobID string, err error) *StandardError {
	details := fmt.Sprintf("jobId: %s", jobID)
	if err != nil {
		details = fmt.Sprintf("%s, error: %s", details, err.Error())
	}
	return &StandardError{
		Code:      ErrCodeDataUnavailable,
		Message:   "Job data unavailable",
		Details:   details,
		Retryable: true,
		Metadata:  map[string]interface{}{"jobId": jobID},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewEstimationDegradedError(assessorID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEstimationDegraded,
		Message:   "Route estimate replaced by fallback",
		Details:   fmt.Sprintf("assessorId: %s, error: %v", assessorID, err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewMissingLocationDataError(assessorID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingLocationData,
		Message:   "Missing location data",
		Details:   fmt.Sprintf("assessorId: %s", assessorID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRouteServiceFailedError wraps a failed or malformed routing call.
func NewRouteServiceFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRouteServiceFailed,
		Message:   "Route estimation service error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewRouteServiceTimeoutError(timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeRouteServiceTimeout,
		Message:   "Route estimation service timeout",
		Details:   fmt.Sprintf("call exceeded %s", timeout),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewSessionClosedError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionClosed,
		Message:   "Recommendation session closed",
		Details:   fmt.Sprintf("jobId: %s", jobID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewJobNotFoundError creates a non-retryable lookup error.
func NewJobNotFoundError(jobID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeJobNotFound,
		Message:   "Job not found",
		Details:   fmt.Sprintf("jobId: %s", jobID),
		Retryable: false,
		Metadata:  map[string]interface{}{"jobId": jobID},
		Timestamp: time.Now().UTC(),
	}
}

// NewPersistenceError reports a failed assignment write. It is never retried
// automatically; the operator decides whether to try again.
func NewPersistenceError(jobID, assessorID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersistenceError,
		Message:   "Failed to persist assignment",
		Details:   fmt.Sprintf("jobId: %s, assessorId: %s, error: %v", jobID, assessorID, err),
		Retryable: false,
		Metadata: map[string]interface{}{
			"jobId":      jobID,
			"assessorId": assessorID,
		},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewStatusNotAssignableError(jobID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatusNotAssignable,
		Message:   "Job status does not allow assignment changes",
		Details:   fmt.Sprintf("jobId: %s, status: %s", jobID, status),
		Retryable: false,
		Metadata:  map[string]interface{}{"jobId": jobID, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

func NewInvalidAssignmentInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidAssignmentInput,
		Message:   "Invalid assignment input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewElasticsearchConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeElasticsearchConnectionFailed,
		Message:   "Elasticsearch connection error",
		Details:   err.Error(),
		Retryable: true,
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
// 4. BPMN Mapping
// ==========================

var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeDataUnavailable:               "DATA_UNAVAILABLE",
	ErrCodeSessionClosed:                 "SESSION_CLOSED",
	ErrCodeJobNotFound:                   "JOB_NOT_FOUND",
	ErrCodePersistenceError:              "ASSIGNMENT_PERSISTENCE_FAILED",
	ErrCodeStatusNotAssignable:           "STATUS_NOT_ASSIGNABLE",
	ErrCodeInvalidAssignmentInput:        "INVALID_ASSIGNMENT_INPUT",
	ErrCodeNotificationSendFailed:        "NOTIFICATION_SEND_FAILED",
	ErrCodeDatabaseConnectionFailed:      "DATABASE_CONNECTION_FAILED",
	ErrCodeElasticsearchConnectionFailed: "ELASTICSEARCH_CONNECTION_FAILED",
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeElasticsearchConnectionFailed,
		ErrCodeNotificationSendFailed:
		return 3

	case ErrCodeDataUnavailable:
		return 2

	default:
		// Business errors and PERSISTENCE_ERROR: the workflow decides.
		return 0
	}
}

func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           bpmnCode,
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "ROUTE") || strings.Contains(codeStr, "ESTIMATION") || strings.Contains(codeStr, "LOCATION"):
		return "ROUTING"
	case strings.Contains(codeStr, "PERSISTENCE") || strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "ELASTICSEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "NOTIFICATION"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "NOT_ASSIGNABLE"):
		return "VALIDATION"
	case strings.Contains(codeStr, "DATA") || strings.Contains(codeStr, "SESSION") || strings.Contains(codeStr, "NOT_FOUND"):
		return "ASSIGNMENT"
	default:
		return "OTHER"
	}
}
