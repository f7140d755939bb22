package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/render"

	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/idempotency"
)

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// Response is the envelope of every API reply. Error carries the localized
// user message and Code the application error code.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
	Data   any    `json:"data,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, Response{Status: StatusOK, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Response{Status: StatusError, Error: msg, Code: code})
}

// fail logs err through the error handler and writes its user message with
// the mapped status code.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	msg, _ := s.errHandler.Handle(r.Context(), err)

	var code string
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
	}

	if errors.Is(err, idempotency.ErrRequestInProgress) {
		msg = s.tr.T("http.request_in_progress")
	}

	s.respondError(w, r, statusFor(err), code, msg)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidTransition), errors.Is(err, idempotency.ErrRequestInProgress):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decode reads a JSON body into dst. An empty body leaves dst unchanged.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := render.DecodeJSON(r.Body, dst); err != nil && !errors.Is(err, io.EOF) {
		invalid := apperrors.NewValidationError(s.tr.T("http.invalid_body"))
		invalid.Message = fmt.Sprintf("decode request body: %v", err)
		return invalid
	}
	return nil
}
