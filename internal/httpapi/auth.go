package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Proton-105/sawti-academy/internal/academy"
	"github.com/Proton-105/sawti-academy/internal/domain"
	"github.com/Proton-105/sawti-academy/internal/entitlement"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

// sessionView is the signed-in user with their access status. Countdown is
// the H:MM:SS remaining on a trial.
type sessionView struct {
	User        *domain.User       `json:"user"`
	Entitlement entitlement.Status `json:"entitlement"`
	Countdown   string             `json:"countdown,omitempty"`
	Unread      int                `json:"unread"`
}

func (s *Server) session() sessionView {
	view := sessionView{
		User:        s.academy.CurrentUser(),
		Entitlement: s.academy.Entitlement(),
		Unread:      s.academy.UnreadCount(),
	}
	if view.Entitlement.Kind == entitlement.KindTrial {
		view.Countdown = entitlement.FormatRemaining(view.Entitlement.Remaining())
	}
	return view
}

func (s *Server) signedIn(w http.ResponseWriter, r *http.Request, status int, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, status, s.session())
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in academy.RegisterInput
	if err := s.decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	_, err := s.academy.Register(r.Context(), in)
	s.signedIn(w, r, http.StatusCreated, err)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := s.decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	_, err := s.academy.Login(r.Context(), in.Phone, in.Password)
	s.signedIn(w, r, http.StatusOK, err)
}

func (s *Server) handleRequestTrial(w http.ResponseWriter, r *http.Request) {
	var in academy.TrialInput
	if err := s.decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	if err := s.academy.RequestTrial(r.Context(), in); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusAccepted, nil)
}

func (s *Server) handleVerifyTrial(w http.ResponseWriter, r *http.Request) {
	var in verifyRequest
	if err := s.decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}

	_, err := s.academy.VerifyTrial(r.Context(), in.Code)
	s.signedIn(w, r, http.StatusOK, err)
}

func (s *Server) handleInstantTrial(w http.ResponseWriter, r *http.Request) {
	_, err := s.academy.StartInstantTrial(r.Context())
	s.signedIn(w, r, http.StatusOK, err)
}

func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	_, err := s.academy.Guest(r.Context())
	s.signedIn(w, r, http.StatusOK, err)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.academy.Logout(r.Context()); err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, http.StatusOK, s.session())
}

type countdownTick struct {
	RemainingMs int64  `json:"remainingMs"`
	Label       string `json:"label"`
	Expired     bool   `json:"expired"`
}

// handleCountdown streams the trial timer over a websocket until the trial
// expires or the client goes away. Users not on an active trial get a
// normal closure right away.
func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Reading detects the client closing the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ws := &liveConn{conn: conn}
	s.countdown.Run(ctx, sessionUser(r.Context()), func(tick entitlement.Tick) {
		err := ws.writeJSON(countdownTick{
			RemainingMs: tick.Remaining.Milliseconds(),
			Label:       tick.Label,
			Expired:     tick.Expired,
		})
		if err != nil {
			cancel()
		}
	})

	_ = ws.writeClose(websocket.CloseNormalClosure)
}
