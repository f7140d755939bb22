package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	CodeValidation   = "E100"
	CodeStorage      = "E200"
	CodeExternalAPI  = "E300"
	CodeState        = "E400"
	CodeRateLimit    = "E500"
	CodeNotFound     = "E600"
	CodeForbidden    = "E700"
	CodeUnauthorized = "E701"
)

// Kind sentinels. errors.Is(err, ErrNotFound) matches any AppError carrying
// the corresponding code, whatever its cause.
var (
	ErrValidation        = errors.New("validation failed")
	ErrStorage           = errors.New("storage failure")
	ErrExternalAPI       = errors.New("external api failure")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
)

// kind holds what every error of one code shares. userMessage is the Arabic
// default shown when the caller does not localize the error itself.
type kind struct {
	sentinel    error
	severity    Severity
	retryable   bool
	userMessage string
}

var kinds = map[string]kind{
	CodeValidation:   {ErrValidation, SeverityLow, false, ""},
	CodeStorage:      {ErrStorage, SeverityHigh, true, "مشكلة مؤقتة، حاول مرة ثانية بعد قليل"},
	CodeExternalAPI:  {ErrExternalAPI, SeverityMedium, true, "الخدمة غير متاحة حالياً"},
	CodeState:        {ErrInvalidTransition, SeverityMedium, false, "لا يمكن تنفيذ العملية في الحالة الحالية"},
	CodeRateLimit:    {ErrRateLimited, SeverityLow, false, ""},
	CodeNotFound:     {ErrNotFound, SeverityLow, false, "العنصر المطلوب غير موجود"},
	CodeForbidden:    {ErrForbidden, SeverityLow, false, "ليست لديك صلاحية لهذه العملية"},
	CodeUnauthorized: {ErrUnauthorized, SeverityLow, false, "يرجى تسجيل الدخول أولاً"},
}

// AppError is an error with a stable code, a log message and the message
// shown to the student or operator.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func newAppError(code, msg string, cause error) *AppError {
	k := kinds[code]
	return &AppError{
		Code:        code,
		Message:     msg,
		UserMessage: k.userMessage,
		Severity:    k.severity,
		Retryable:   k.retryable,
		cause:       cause,
	}
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func (e *AppError) Cause() error { return e.Unwrap() }

func (e *AppError) Is(target error) bool {
	if e == nil {
		return false
	}
	k, ok := kinds[e.Code]
	return ok && k.sentinel == target
}

// NewValidationError carries msg to the user verbatim: validation messages
// are already written for the student.
func NewValidationError(msg string) *AppError {
	e := newAppError(CodeValidation, msg, nil)
	e.UserMessage = msg
	return e
}

func NewStorageError(cause error) *AppError {
	msg := "storage error"
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return newAppError(CodeStorage, msg, cause)
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	return newAppError(CodeExternalAPI, "external api error: "+apiName, cause)
}

func NewStateError(msg string) *AppError {
	return newAppError(CodeState, msg, nil)
}

func NewInvalidTransitionError(entity, from, to string) *AppError {
	return NewStateError(fmt.Sprintf("%s: cannot move from %s to %s", entity, from, to))
}

func NewRateLimitError(retryAfter int) *AppError {
	e := newAppError(CodeRateLimit, fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter), nil)
	e.UserMessage = fmt.Sprintf("طلبات كثيرة. حاول بعد %d ثانية", retryAfter)
	return e
}

func NewNotFoundError(msg string) *AppError {
	return newAppError(CodeNotFound, msg, nil)
}

func NewForbiddenError(msg string) *AppError {
	return newAppError(CodeForbidden, msg, nil)
}

// NewUnauthorizedError uses the default sign-in prompt when userMessage is
// empty.
func NewUnauthorizedError(msg, userMessage string) *AppError {
	e := newAppError(CodeUnauthorized, msg, nil)
	if userMessage != "" {
		e.UserMessage = userMessage
	}
	return e
}
