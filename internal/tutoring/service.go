// Package tutoring is the AI study assistant: text chat about a lesson and
// live audio sessions with the tutor persona.
package tutoring

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/i18n"
	"github.com/Proton-105/sawti-academy/pkg/metrics"
)

// MaxDocumentRunes caps the uploaded document text passed to a live session.
const MaxDocumentRunes = 5000

type Deps struct {
	Generator  Generator
	Live       LiveConnector
	Breaker    *apperrors.CircuitBreaker
	Retry      *apperrors.RetryPolicy
	Translator i18n.Translator
	Timeout    time.Duration
	Log        *slog.Logger
}

type Service struct {
	gen     Generator
	live    LiveConnector
	breaker *apperrors.CircuitBreaker
	retry   apperrors.RetryPolicy
	tr      i18n.Translator
	timeout time.Duration
	log     *slog.Logger
}

func NewService(deps Deps) *Service {
	if deps.Breaker == nil {
		deps.Breaker = apperrors.NewCircuitBreaker(apperrors.BreakerConfig{Name: "gemini"})
	}
	if deps.Translator == nil {
		deps.Translator = i18n.MustDefault()
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	retry := apperrors.DefaultRetryPolicy
	if deps.Retry != nil {
		retry = *deps.Retry
	}

	return &Service{
		gen:     deps.Generator,
		live:    deps.Live,
		breaker: deps.Breaker,
		retry:   retry,
		tr:      deps.Translator,
		timeout: deps.Timeout,
		log:     deps.Log,
	}
}

// Chat answers the student's message. Model failures never surface: the
// reply is the tutor's in-character fallback and the conversation stays
// usable. Only an empty message is an error.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (Reply, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return Reply{}, apperrors.NewValidationError("empty chat message")
	}

	if s.gen == nil {
		return s.fallback(), nil
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	transcript := make([]Turn, 0, len(req.History)+1)
	for _, turn := range req.History {
		if strings.TrimSpace(turn.Text) == "" {
			continue
		}
		if turn.Role != RoleModel {
			turn.Role = RoleUser
		}
		transcript = append(transcript, turn)
	}
	transcript = append(transcript, Turn{Role: RoleUser, Text: message})

	instruction := i18n.Sprintf(s.tr, "tutoring.chat_instruction", req.Student, req.Lesson.Title, req.Lesson.Description)

	var text string
	err := s.breaker.Call(func() error {
		return s.retry.Do(ctx, func() error {
			var genErr error
			text, genErr = s.gen.Generate(ctx, instruction, transcript)
			return genErr
		})
	})
	if err != nil {
		severity := apperrors.SeverityMedium
		if errors.Is(err, apperrors.ErrCircuitOpen) {
			severity = apperrors.SeverityLow
		}
		metrics.RecordError("tutoring_chat", string(severity))
		s.log.Warn("tutor chat failed, sending fallback", slog.String("lesson_id", req.Lesson.ID), slog.Any("error", err))
		return s.fallback(), nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Text: s.tr.T("tutoring.empty_reply")}, nil
	}

	return Reply{Text: text}, nil
}

func (s *Service) fallback() Reply {
	return Reply{Text: s.tr.T("tutoring.fallback_reply"), Fallback: true}
}

// liveInstruction builds the system instruction of a live session from the
// uploaded document, or the lesson when there is none.
func (s *Service) liveInstruction(req SessionRequest, document string) string {
	var studyContext string
	if document != "" {
		studyContext = i18n.Sprintf(s.tr, "tutoring.document_context", document)
	} else {
		studyContext = i18n.Sprintf(s.tr, "tutoring.lesson_context", req.Lesson.Title, req.Lesson.Description)
	}
	return i18n.Sprintf(s.tr, "tutoring.live_instruction", req.Student, studyContext)
}

// TruncateDocument keeps the first MaxDocumentRunes characters of text.
func TruncateDocument(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= MaxDocumentRunes {
		return text
	}
	return string(runes[:MaxDocumentRunes])
}
