package tutoring

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/Proton-105/sawti-academy/internal/domain"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
)

var ErrSessionClosed = errors.New("tutoring session is closed")

type SessionRequest struct {
	Lesson  domain.Lesson
	Student string
	// Document is text extracted from a file the student uploaded.
	Document string
}

// Chunk is decoded tutor audio with its playback start offset, measured
// from the session's start.
type Chunk struct {
	Samples []float32
	Start   time.Duration
}

// Session is one live audio call. It owns the stream and the document text
// until Close, which is safe to call any number of times from any goroutine.
type Session struct {
	stream   LiveStream
	playback Playback
	log      *slog.Logger
	started  time.Time
	now      func() time.Time

	mu       sync.Mutex
	document string
	closed   bool
	once     sync.Once
	closeErr error
}

// OpenSession connects a live audio session primed with the lesson or the
// uploaded document, truncated to MaxDocumentRunes.
func (s *Service) OpenSession(ctx context.Context, req SessionRequest) (*Session, error) {
	if s.live == nil {
		return nil, apperrors.NewExternalAPIError("gemini live", errors.New("live tutoring is not configured"))
	}

	document := TruncateDocument(req.Document)

	var stream LiveStream
	err := s.breaker.Call(func() error {
		var connErr error
		stream, connErr = s.live.Connect(ctx, s.liveInstruction(req, document))
		return connErr
	})
	if err != nil {
		return nil, fmt.Errorf("open live session: %w", err)
	}

	s.log.Info("live tutoring session opened", slog.String("lesson_id", req.Lesson.ID), slog.Bool("document", document != ""))

	return &Session{
		stream:   stream,
		log:      s.log,
		started:  time.Now(),
		now:      time.Now,
		document: document,
	}, nil
}

// SendAudio encodes microphone samples as 16 kHz PCM and sends them upstream.
func (s *Session) SendAudio(ctx context.Context, samples []float32) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.stream.SendAudio(ctx, EncodePCM16(samples))
}

// Pump receives tutor audio until the stream ends or ctx is cancelled,
// scheduling each chunk gaplessly and calling onInterrupt when the student
// talks over the tutor. The session is closed when Pump returns.
func (s *Session) Pump(ctx context.Context, onChunk func(Chunk), onInterrupt func()) error {
	defer s.Close()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	for {
		ev, err := s.stream.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) || s.isClosed() {
				return nil
			}
			return fmt.Errorf("receive live audio: %w", err)
		}

		if len(ev.Audio) > 0 {
			samples := DecodePCM16(ev.Audio)
			start := s.playback.Schedule(s.now().Sub(s.started), SamplesDuration(len(samples), OutputSampleRate))
			if onChunk != nil {
				onChunk(Chunk{Samples: samples, Start: start})
			}
		}

		if ev.Interrupted {
			dropped := s.playback.Interrupt()
			s.log.Debug("tutor interrupted", slog.Int("dropped_chunks", dropped))
			if onInterrupt != nil {
				onInterrupt()
			}
		}
	}
}

// Document is the context text the session was opened with.
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}

// Close releases the stream, drops queued audio and clears the document.
func (s *Session) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.document = ""
		s.mu.Unlock()

		s.playback.Interrupt()
		s.closeErr = s.stream.Close()
		s.log.Info("live tutoring session closed")
	})
	return s.closeErr
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
