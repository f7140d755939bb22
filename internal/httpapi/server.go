// Package httpapi serves the academy session over JSON: authentication,
// the lesson catalog, payment requests, notifications, the study assistant
// and the operator dashboard. Every response uses the Response envelope.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	chimw "github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Proton-105/sawti-academy/internal/academy"
	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/entitlement"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/health"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/internal/idempotency"
	"github.com/Proton-105/sawti-academy/internal/middleware"
	"github.com/Proton-105/sawti-academy/internal/ratelimit"
	"github.com/Proton-105/sawti-academy/internal/tutoring"
	"github.com/Proton-105/sawti-academy/pkg/logger"
)

// SubmissionTTL is how long a payment submission is replayed for the same
// user and transaction reference.
const SubmissionTTL = 24 * time.Hour

// Academy is the session surface the API exposes.
type Academy interface {
	CurrentUser() *domain.User
	Entitlement() entitlement.Status

	Register(ctx context.Context, in academy.RegisterInput) (*domain.User, error)
	Login(ctx context.Context, phone, password string) (*domain.User, error)
	RequestTrial(ctx context.Context, in academy.TrialInput) error
	VerifyTrial(ctx context.Context, code string) (*domain.User, error)
	StartInstantTrial(ctx context.Context) (*domain.User, error)
	Guest(ctx context.Context) (*domain.User, error)
	Logout(ctx context.Context) error

	Lessons(query string) []domain.Lesson
	Lesson(id string) (domain.Lesson, error)
	CanPlay(id string) (bool, error)
	AddLesson(ctx context.Context, lesson domain.Lesson) (domain.Lesson, error)

	SubmitPayment(ctx context.Context, in academy.SubmitInput) (academy.Submission, error)
	Payments(status domain.PaymentStatus) []domain.PaymentRequest
	ConfirmPayment(ctx context.Context, id string) (domain.PaymentRequest, error)
	RejectPayment(ctx context.Context, id, reason string) (domain.PaymentRequest, error)

	Notifications() []domain.AppNotification
	UnreadCount() int
	MarkNotificationRead(ctx context.Context, id string) error

	Stats() academy.Stats
	Students(query string) []domain.User
}

// Tutor answers study questions and opens live audio calls.
type Tutor interface {
	Chat(ctx context.Context, req tutoring.ChatRequest) (tutoring.Reply, error)
	OpenSession(ctx context.Context, req tutoring.SessionRequest) (*tutoring.Session, error)
}

// Probes backs /healthz and /readyz.
type Probes interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
	Report(ctx context.Context) health.Report
}

type Deps struct {
	Academy     Academy
	Tutor       Tutor
	Probes      Probes
	Countdown   *entitlement.Countdown
	RateLimit   *middleware.RateLimitMiddleware
	Idempotency idempotency.Manager
	ErrHandler  *apperrors.Handler
	Translator  i18n.Translator
	Log         *slog.Logger
}

type Server struct {
	academy     Academy
	tutor       Tutor
	probes      Probes
	countdown   *entitlement.Countdown
	rateLimit   *middleware.RateLimitMiddleware
	idempotency idempotency.Manager
	errHandler  *apperrors.Handler
	tr          i18n.Translator
	log         *slog.Logger
}

func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault()
	}
	if deps.ErrHandler == nil {
		deps.ErrHandler = apperrors.NewHandler(deps.Log, false).WithFallback(deps.Translator.T("errors.generic"))
	}
	if deps.Countdown == nil {
		deps.Countdown = entitlement.NewCountdown(nil, 0, deps.Log)
	}

	return &Server{
		academy:     deps.Academy,
		tutor:       deps.Tutor,
		probes:      deps.Probes,
		countdown:   deps.Countdown,
		rateLimit:   deps.RateLimit,
		idempotency: deps.Idempotency,
		errHandler:  deps.ErrHandler,
		tr:          deps.Translator,
		log:         deps.Log,
	}
}

// Routes builds the chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(logger.Middleware)
	r.Use(middleware.Logging(s.log))
	r.Use(middleware.HTTPMetrics)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReadiness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.With(s.limit(ratelimit.RouteLogin)).Post("/login", s.handleLogin)
			r.Post("/trial", s.handleRequestTrial)
			r.With(s.limit(ratelimit.RouteLogin)).Post("/trial/verify", s.handleVerifyTrial)
			r.Post("/trial/instant", s.handleInstantTrial)
			r.Post("/guest", s.handleGuest)
			r.Post("/logout", s.handleLogout)
		})

		r.With(s.requireUser).Get("/me", s.handleMe)
		r.With(s.requireUser).Get("/me/countdown", s.handleCountdown)

		r.Get("/lessons", s.handleLessons)
		r.Get("/lessons/{id}", s.handleLesson)

		r.Group(func(r chi.Router) {
			r.Use(s.requireUser)

			r.Get("/payments", s.handleMyPayments)
			r.With(s.limit(ratelimit.RouteSubmit)).Post("/payments", s.handleSubmitPayment)

			r.Get("/notifications", s.handleNotifications)
			r.Post("/notifications/{id}/read", s.handleMarkRead)

			r.With(s.limit(ratelimit.RouteChat)).Post("/tutor/chat", s.handleTutorChat)
			r.Get("/tutor/live", s.handleTutorLive)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Use(s.limit(ratelimit.RouteOperator))

			r.Get("/stats", s.handleStats)
			r.Get("/students", s.handleStudents)
			r.Get("/payments", s.handlePayments)
			r.Post("/payments/{id}/confirm", s.handleConfirm)
			r.Post("/payments/{id}/reject", s.handleReject)
			r.Post("/lessons", s.handleAddLesson)
		})
	})

	return r
}

// limit applies the route budget, or nothing when rate limiting is not wired.
func (s *Server) limit(route string) func(http.Handler) http.Handler {
	if s.rateLimit == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.rateLimit.HTTP(route, func(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
		s.fail(w, r, apperrors.NewRateLimitError(int(retryAfter.Round(time.Second).Seconds())))
	})
}

type sessionUserKey struct{}

// sessionUser returns the user the guarding middleware admitted the request
// for. It stays valid if the session changes while the request runs.
func sessionUser(ctx context.Context) *domain.User {
	user, _ := ctx.Value(sessionUserKey{}).(*domain.User)
	return user
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := s.academy.CurrentUser()
		if user == nil {
			s.fail(w, r, s.unauthorized())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionUserKey{}, user)))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := s.academy.CurrentUser()
		if user == nil {
			s.fail(w, r, s.unauthorized())
			return
		}
		if !user.IsAdmin() {
			forbidden := apperrors.NewForbiddenError("admin route requested by " + string(user.Role))
			forbidden.UserMessage = s.tr.T("auth.admin_only")
			s.fail(w, r, forbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionUserKey{}, user)))
	})
}

func (s *Server) unauthorized() error {
	return apperrors.NewUnauthorizedError("no signed-in user", s.tr.T("auth.login_required"))
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if s.probes == nil {
		s.respond(w, r, http.StatusOK, nil)
		return
	}
	if err := s.probes.Liveness(r.Context()); err != nil {
		s.respondError(w, r, http.StatusServiceUnavailable, "", err.Error())
		return
	}
	s.respond(w, r, http.StatusOK, nil)
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if s.probes == nil {
		s.respond(w, r, http.StatusOK, nil)
		return
	}
	if err := s.probes.Readiness(r.Context()); err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, Response{Status: StatusError, Error: err.Error(), Data: s.probes.Report(r.Context())})
		return
	}
	s.respond(w, r, http.StatusOK, s.probes.Report(r.Context()))
}
