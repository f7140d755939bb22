package httpapi

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Proton-105/sawti-academy/internal/domain"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/tutoring"
)

const liveWriteTimeout = 5 * time.Second

type chatRequest struct {
	LessonID string          `json:"lessonId"`
	History  []tutoring.Turn `json:"history"`
	Message  string          `json:"message"`
}

func (s *Server) handleTutorChat(w http.ResponseWriter, r *http.Request) {
	var in chatRequest
	if err := s.decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	if s.tutor == nil {
		s.fail(w, r, s.tutorUnavailable())
		return
	}

	lesson, err := s.lessonFor(in.LessonID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	reply, err := s.tutor.Chat(r.Context(), tutoring.ChatRequest{
		Lesson:  lesson,
		Student: sessionUser(r.Context()).Name,
		History: in.History,
		Message: in.Message,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.respond(w, r, http.StatusOK, reply)
}

func (s *Server) lessonFor(id string) (domain.Lesson, error) {
	if id == "" {
		return domain.Lesson{}, nil
	}
	return s.academy.Lesson(id)
}

func (s *Server) tutorUnavailable() error {
	unavailable := apperrors.NewExternalAPIError("tutor", nil)
	unavailable.UserMessage = s.tr.T("http.tutor_unavailable")
	return unavailable
}

// liveHello is the first text frame of a live call.
type liveHello struct {
	LessonID string `json:"lessonId"`
	Document string `json:"document"`
}

// liveEvent is a text frame sent to the client. Audio itself travels in
// binary frames: an 8-byte little-endian playback offset in milliseconds
// followed by float32 little-endian samples at 24 kHz.
type liveEvent struct {
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

const (
	liveEventReady       = "ready"
	liveEventInterrupted = "interrupted"
	liveEventError       = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleTutorLive bridges a websocket to a live tutoring session. The client
// sends a liveHello, then binary frames of float32 little-endian samples
// captured at 16 kHz. The session is closed however the call ends.
func (s *Server) handleTutorLive(w http.ResponseWriter, r *http.Request) {
	if s.tutor == nil {
		s.fail(w, r, s.tutorUnavailable())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", slog.Any("error", err))
		return
	}
	defer conn.Close()

	ws := &liveConn{conn: conn}

	var hello liveHello
	if err := conn.ReadJSON(&hello); err != nil {
		s.log.Warn("live call ended before hello", slog.Any("error", err))
		return
	}

	lesson, err := s.lessonFor(hello.LessonID)
	if err != nil {
		msg, _ := s.errHandler.Handle(r.Context(), err)
		_ = ws.writeJSON(liveEvent{Type: liveEventError, Error: msg})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := s.tutor.OpenSession(ctx, tutoring.SessionRequest{
		Lesson:   lesson,
		Student:  sessionUser(r.Context()).Name,
		Document: hello.Document,
	})
	if err != nil {
		msg, _ := s.errHandler.Handle(ctx, err)
		_ = ws.writeJSON(liveEvent{Type: liveEventError, Error: msg})
		return
	}
	defer session.Close()

	if err := ws.writeJSON(liveEvent{Type: liveEventReady}); err != nil {
		return
	}

	pumpDone := make(chan error, 1)
	go func() {
		pumpDone <- session.Pump(ctx,
			func(chunk tutoring.Chunk) {
				if err := ws.writeBinary(encodeChunk(chunk)); err != nil {
					cancel()
				}
			},
			func() {
				if err := ws.writeJSON(liveEvent{Type: liveEventInterrupted}); err != nil {
					cancel()
				}
			},
		)
		// The model ended the call; unblock the reader below.
		_ = conn.Close()
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if err := session.SendAudio(ctx, decodeSamples(data)); err != nil {
			if !errors.Is(err, tutoring.ErrSessionClosed) {
				s.log.Warn("live audio send failed", slog.Any("error", err))
			}
			break
		}
	}

	cancel()
	if err := <-pumpDone; err != nil {
		s.log.Warn("live call ended with error", slog.Any("error", err))
	}
}

// liveConn serializes writes; gorilla connections allow one writer at a time.
type liveConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *liveConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return c.conn.WriteJSON(v)
}

func (c *liveConn) writeBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(liveWriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (c *liveConn) writeClose(code int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(liveWriteTimeout))
}

func encodeChunk(chunk tutoring.Chunk) []byte {
	out := make([]byte, 8+4*len(chunk.Samples))
	binary.LittleEndian.PutUint64(out, uint64(chunk.Start.Milliseconds()))
	for i, v := range chunk.Samples {
		binary.LittleEndian.PutUint32(out[8+4*i:], math.Float32bits(v))
	}
	return out
}

// decodeSamples ignores a trailing partial sample.
func decodeSamples(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return samples
}
