// Package apierrors implements the control plane's canonical error envelope:
// a stable string code, an HTTP status, a human message, and optional
// structured details, always carrying the request id that produced it.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, contract-fixed error identifier (e.g. "RISK_LIMIT_BREACH").
type Code string

const (
	CodeAuthUnauthorized       Code = "AUTH_UNAUTHORIZED"
	CodeAuthIdentityMismatch   Code = "AUTH_IDENTITY_MISMATCH"
	CodeValidationInvalid      Code = "VALIDATION_INVALID"
	CodeIdempotencyConflict    Code = "IDEMPOTENCY_KEY_CONFLICT"
	CodeRiskLimitBreach        Code = "RISK_LIMIT_BREACH"
	CodeRiskKillSwitchActive   Code = "RISK_KILL_SWITCH_ACTIVE"
	CodeRiskPolicyInvalid      Code = "RISK_POLICY_INVALID"
	CodeInternal               Code = "INTERNAL_ERROR"
	CodeResearchBudgetExceeded  Code = "RESEARCH_PROVIDER_BUDGET_EXCEEDED"
	CodeResearchBudgetInvalid   Code = "RESEARCH_PROVIDER_BUDGET_INVALID"
	CodeKnowledgeRegimeNotFound Code = "KNOWLEDGE_REGIME_NOT_FOUND"
	CodeDatasetNotFound         Code = "DATASET_NOT_FOUND"
	CodeDatasetNotPublished     Code = "DATASET_NOT_PUBLISHED"
	CodeDatasetPublishFailed    Code = "DATASET_PUBLISH_FAILED"
	CodeDataExportNotFound      Code = "DATA_EXPORT_NOT_FOUND"
)

// PlatformAPIError is the structured error every domain service and adapter
// ultimately returns; a single envelope renderer at the HTTP boundary turns
// it into the wire-format error response.
type PlatformAPIError struct {
	Code       Code
	HTTPStatus int
	Message    string
	Details    map[string]interface{}
	RequestID  string
	Err        error
}

func (e *PlatformAPIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *PlatformAPIError) Unwrap() error { return e.Err }

// WithDetails attaches (or extends) the structured details map and returns e
// for chaining.
func (e *PlatformAPIError) WithDetails(key string, value interface{}) *PlatformAPIError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID stamps the request id that produced this error.
func (e *PlatformAPIError) WithRequestID(requestID string) *PlatformAPIError {
	e.RequestID = requestID
	return e
}

// New builds a PlatformAPIError with no wrapped cause.
func New(code Code, status int, message string) *PlatformAPIError {
	return &PlatformAPIError{Code: code, HTTPStatus: status, Message: message}
}

// Wrap builds a PlatformAPIError around an underlying cause.
func Wrap(code Code, status int, message string, err error) *PlatformAPIError {
	return &PlatformAPIError{Code: code, HTTPStatus: status, Message: message, Err: err}
}

// Convenience constructors matching spec.md §7 error kinds.

func Unauthorized(message string) *PlatformAPIError {
	return New(CodeAuthUnauthorized, http.StatusUnauthorized, message)
}

func IdentityMismatch(header string) *PlatformAPIError {
	return New(CodeAuthIdentityMismatch, http.StatusUnauthorized,
		fmt.Sprintf("%s does not match authenticated identity", header)).
		WithDetails("header", header)
}

func Validation(field, reason string) *PlatformAPIError {
	return New(CodeValidationInvalid, http.StatusBadRequest, reason).
		WithDetails("field", field)
}

func NotFound(resource, id string) *PlatformAPIError {
	return New(Code(fmt.Sprintf("%s_NOT_FOUND", resource)), http.StatusNotFound,
		fmt.Sprintf("%s %s not found", resource, id)).
		WithDetails("resource", resource).WithDetails("id", id)
}

func IdempotencyConflict(scope, key string) *PlatformAPIError {
	return New(CodeIdempotencyConflict, http.StatusConflict,
		"Idempotency-Key reused with a different payload").
		WithDetails("scope", scope).WithDetails("key", key)
}

func RiskLimitBreach(message string) *PlatformAPIError {
	return New(CodeRiskLimitBreach, http.StatusUnprocessableEntity, message)
}

func RiskKillSwitchActive() *PlatformAPIError {
	return New(CodeRiskKillSwitchActive, http.StatusLocked,
		"risk kill-switch is active; execution side effects are blocked")
}

func RiskPolicyInvalid(err error) *PlatformAPIError {
	return Wrap(CodeRiskPolicyInvalid, http.StatusInternalServerError, "risk policy validation failed", err)
}

func Internal(message string, err error) *PlatformAPIError {
	return Wrap(CodeInternal, http.StatusInternalServerError, message, err)
}

func ResearchBudgetExceeded(reason string) *PlatformAPIError {
	return New(CodeResearchBudgetExceeded, http.StatusTooManyRequests, "research provider budget exceeded").
		WithDetails("reason", reason)
}

func KnowledgeRegimeNotFound(asset string) *PlatformAPIError {
	return New(CodeKnowledgeRegimeNotFound, http.StatusNotFound, "no open market regime for asset "+asset).
		WithDetails("asset", asset)
}

func DatasetNotFound(datasetID string) *PlatformAPIError {
	return New(CodeDatasetNotFound, http.StatusNotFound, "dataset "+datasetID+" not found").
		WithDetails("datasetId", datasetID)
}

func DatasetNotPublished(datasetID string) *PlatformAPIError {
	return New(CodeDatasetNotPublished, http.StatusNotFound, "dataset "+datasetID+" is not published").
		WithDetails("datasetId", datasetID)
}

func DatasetPublishFailed(datasetID string, err error) *PlatformAPIError {
	return Wrap(CodeDatasetPublishFailed, http.StatusBadGateway, "dataset "+datasetID+" failed to publish", err).
		WithDetails("datasetId", datasetID)
}

func DataExportNotFound(exportID string) *PlatformAPIError {
	return New(CodeDataExportNotFound, http.StatusNotFound, "dataset export "+exportID+" not found").
		WithDetails("exportId", exportID)
}

func ResearchBudgetInvalid(err error) *PlatformAPIError {
	return Wrap(CodeResearchBudgetInvalid, http.StatusInternalServerError, "research provider budget policy is invalid", err)
}

// As extracts a *PlatformAPIError from err, following the wrap chain.
func As(err error) (*PlatformAPIError, bool) {
	var pe *PlatformAPIError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
