package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi"

	"github.com/Proton-105/sawti-academy/internal/academy"
	"github.com/Proton-105/sawti-academy/internal/domain"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/idempotency"
)

// ReplayedHeader marks a submission answered from the idempotency store.
const ReplayedHeader = "Idempotent-Replayed"

type rejectRequest struct {
	Reason string `json:"reason"`
}

// handleSubmitPayment records a payment request once per user and
// transaction reference. A repeated submission replays the first response.
func (s *Server) handleSubmitPayment(w http.ResponseWriter, r *http.Request) {
	var in academy.SubmitInput
	if err := s.decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	submit := func(ctx context.Context) (any, error) {
		return s.academy.SubmitPayment(ctx, in)
	}

	txn := strings.TrimSpace(in.TransactionID)
	if s.idempotency == nil || txn == "" {
		submission, err := submit(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		s.respond(w, r, http.StatusCreated, submission)
		return
	}

	key := idempotency.Key("payment", sessionUser(r.Context()).ID, txn)
	result, err := s.idempotency.Execute(r.Context(), key, SubmissionTTL, submit)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if result.FromCache {
		w.Header().Set(ReplayedHeader, "true")
	}
	s.respond(w, r, http.StatusCreated, json.RawMessage(result.Response))
}

// handleMyPayments lists the signed-in user's own requests.
func (s *Server) handleMyPayments(w http.ResponseWriter, r *http.Request) {
	userID := sessionUser(r.Context()).ID

	mine := []domain.PaymentRequest{}
	for _, p := range s.academy.Payments("") {
		if p.UserID == userID {
			mine = append(mine, p)
		}
	}
	s.respond(w, r, http.StatusOK, mine)
}

func (s *Server) handlePayments(w http.ResponseWriter, r *http.Request) {
	status := domain.PaymentStatus(strings.ToUpper(r.URL.Query().Get("status")))
	if status != "" && !status.Valid() {
		s.fail(w, r, apperrors.NewValidationError(s.tr.T("http.invalid_status")))
		return
	}
	s.respond(w, r, http.StatusOK, s.academy.Payments(status))
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	confirmed, err := s.academy.ConfirmPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, confirmed)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var in rejectRequest
	if err := s.decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	rejected, err := s.academy.RejectPayment(r.Context(), chi.URLParam(r, "id"), in.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, rejected)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.academy.Stats())
}

func (s *Server) handleStudents(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.academy.Students(r.URL.Query().Get("q")))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, map[string]any{
		"items":  s.academy.Notifications(),
		"unread": s.academy.UnreadCount(),
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.academy.MarkNotificationRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, map[string]int{"unread": s.academy.UnreadCount()})
}
