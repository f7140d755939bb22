package tutoring

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/sawti-academy/internal/domain"
	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
	"github.com/Proton-105/sawti-academy/internal/i18n"
)

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func translator(t *testing.T) i18n.Translator {
	t.Helper()
	m, err := i18n.Load(i18n.DefaultLang)
	require.NoError(t, err)
	return m.Translator("ar")
}

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Generate(ctx context.Context, instruction string, transcript []Turn) (string, error) {
	args := m.Called(ctx, instruction, transcript)
	return args.String(0), args.Error(1)
}

var lesson = domain.Lesson{ID: "1", Title: "مقام الرست", Description: "شرح مقام الرست"}

func TestService_Chat(t *testing.T) {
	tr := translator(t)

	tests := []struct {
		name     string
		reply    string
		err      error
		want     string
		fallback bool
	}{
		{name: "answer", reply: "  هلا عيني، الرست كلش سهل  ", want: "هلا عيني، الرست كلش سهل"},
		{name: "empty answer", reply: "   ", want: tr.T("tutoring.empty_reply")},
		{name: "model failure", err: errors.New("503 unavailable"), want: tr.T("tutoring.fallback_reply"), fallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(mockGenerator)
			gen.On("Generate", mock.Anything, mock.MatchedBy(func(instruction string) bool {
				return strings.Contains(instruction, "علي") && strings.Contains(instruction, lesson.Title)
			}), mock.Anything).Return(tt.reply, tt.err).Once()

			svc := NewService(Deps{Generator: gen, Translator: tr, Log: quietLog()})
			reply, err := svc.Chat(context.Background(), ChatRequest{Lesson: lesson, Student: "علي", Message: "شنو الرست؟"})

			require.NoError(t, err)
			assert.Equal(t, tt.want, reply.Text)
			assert.Equal(t, tt.fallback, reply.Fallback)
			gen.AssertExpectations(t)
		})
	}
}

func TestService_ChatTranscript(t *testing.T) {
	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything, []Turn{
		{Role: RoleUser, Text: "سلام"},
		{Role: RoleModel, Text: "هلا بيك"},
		{Role: RoleUser, Text: "سؤال جديد"},
	}).Return("جواب", nil).Once()

	svc := NewService(Deps{Generator: gen, Translator: translator(t), Log: quietLog()})
	reply, err := svc.Chat(context.Background(), ChatRequest{
		Lesson: lesson,
		History: []Turn{
			{Role: "student", Text: "سلام"},
			{Role: RoleModel, Text: "هلا بيك"},
			{Role: RoleModel, Text: "  "},
		},
		Message: " سؤال جديد ",
	})

	require.NoError(t, err)
	assert.Equal(t, "جواب", reply.Text)
	gen.AssertExpectations(t)
}

func TestService_ChatRejectsEmptyMessage(t *testing.T) {
	svc := NewService(Deps{Translator: translator(t), Log: quietLog()})

	_, err := svc.Chat(context.Background(), ChatRequest{Message: "  "})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestService_ChatRetriesAndTripsBreaker(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	breaker := apperrors.NewCircuitBreaker(apperrors.BreakerConfig{
		Name:    "tutor-test",
		OpenFor: time.Minute,
		Now:     func() time.Time { return now },
	})

	gen := new(mockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything, mock.Anything).
		Return("", apperrors.NewExternalAPIError("gemini", errors.New("timeout")))

	svc := NewService(Deps{
		Generator:  gen,
		Breaker:    breaker,
		Retry:      &apperrors.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1},
		Translator: translator(t),
		Log:        quietLog(),
	})

	for i := 0; i < apperrors.DefaultMinRequests; i++ {
		reply, err := svc.Chat(context.Background(), ChatRequest{Lesson: lesson, Message: "سؤال"})
		require.NoError(t, err)
		assert.True(t, reply.Fallback)
	}
	gen.AssertNumberOfCalls(t, "Generate", 2*apperrors.DefaultMinRequests)

	reply, err := svc.Chat(context.Background(), ChatRequest{Lesson: lesson, Message: "سؤال"})
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
	gen.AssertNumberOfCalls(t, "Generate", 2*apperrors.DefaultMinRequests)
}

func TestService_ChatWithoutGenerator(t *testing.T) {
	svc := NewService(Deps{Translator: translator(t), Log: quietLog()})

	reply, err := svc.Chat(context.Background(), ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.True(t, reply.Fallback)
}

func TestPCM16(t *testing.T) {
	encoded := EncodePCM16([]float32{0, 0.5, -0.5, 1, -1, 2})
	require.Len(t, encoded, 12)

	assert.Equal(t, []byte{0x00, 0x00}, encoded[0:2])
	assert.Equal(t, []byte{0x00, 0x40}, encoded[2:4])
	assert.Equal(t, []byte{0x00, 0xc0}, encoded[4:6])
	assert.Equal(t, []byte{0xff, 0x7f}, encoded[6:8], "1.0 clamps to max int16")
	assert.Equal(t, []byte{0x00, 0x80}, encoded[8:10])
	assert.Equal(t, []byte{0xff, 0x7f}, encoded[10:12])

	decoded := DecodePCM16(append(encoded[:6], 0x01))
	assert.Equal(t, []float32{0, 0.5, -0.5}, decoded)
}

func TestSamplesDuration(t *testing.T) {
	assert.Equal(t, time.Second, SamplesDuration(OutputSampleRate, OutputSampleRate))
	assert.Equal(t, 500*time.Millisecond, SamplesDuration(8000, InputSampleRate))
	assert.Zero(t, SamplesDuration(10, 0))
}

func TestPlayback(t *testing.T) {
	var p Playback

	assert.Equal(t, time.Duration(0), p.Schedule(0, time.Second))
	assert.Equal(t, time.Second, p.Schedule(200*time.Millisecond, time.Second), "queued behind the first chunk")
	assert.Equal(t, 5*time.Second, p.Schedule(5*time.Second, time.Second), "gap after an idle period")
	assert.Equal(t, 3, p.Queued())

	assert.Equal(t, 3, p.Interrupt())
	assert.Equal(t, 0, p.Queued())
	assert.Equal(t, 5500*time.Millisecond, p.Schedule(5500*time.Millisecond, time.Second))
}

func TestTruncateDocument(t *testing.T) {
	long := strings.Repeat("م", MaxDocumentRunes+10)
	assert.Equal(t, MaxDocumentRunes, len([]rune(TruncateDocument(long))))
	assert.Equal(t, "نص قصير", TruncateDocument("  نص قصير "))
}

type fakeStream struct {
	mu      sync.Mutex
	events  chan LiveEvent
	sent    [][]byte
	closed  int
	closeCh chan struct{}
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan LiveEvent, 8), closeCh: make(chan struct{})}
}

func (f *fakeStream) SendAudio(_ context.Context, pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pcm)
	return nil
}

func (f *fakeStream) Receive() (LiveEvent, error) {
	select {
	case ev, ok := <-f.events:
		if !ok {
			return LiveEvent{}, io.EOF
		}
		return ev, nil
	case <-f.closeCh:
		return LiveEvent{}, errors.New("use of closed connection")
	}
}

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	if f.closed == 1 {
		close(f.closeCh)
	}
	return nil
}

type fakeConnector struct {
	stream      *fakeStream
	instruction string
	err         error
}

func (c *fakeConnector) Connect(_ context.Context, instruction string) (LiveStream, error) {
	c.instruction = instruction
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

func TestSession_DocumentContextAndClose(t *testing.T) {
	tr := translator(t)
	conn := &fakeConnector{stream: newFakeStream()}
	svc := NewService(Deps{Live: conn, Translator: tr, Log: quietLog()})

	doc := strings.Repeat("ن", MaxDocumentRunes+100)
	session, err := svc.OpenSession(context.Background(), SessionRequest{Lesson: lesson, Student: "زينب", Document: doc})
	require.NoError(t, err)

	assert.Len(t, []rune(session.Document()), MaxDocumentRunes)
	assert.Contains(t, conn.instruction, "زينب")
	assert.Contains(t, conn.instruction, strings.Repeat("ن", 10))
	assert.NotContains(t, conn.instruction, lesson.Description)

	require.NoError(t, session.SendAudio(context.Background(), []float32{0.5}))
	assert.Equal(t, [][]byte{{0x00, 0x40}}, conn.stream.sent)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, 1, conn.stream.closed)
	assert.Empty(t, session.Document())
	assert.ErrorIs(t, session.SendAudio(context.Background(), []float32{0}), ErrSessionClosed)
}

func TestSession_LessonContextWithoutDocument(t *testing.T) {
	conn := &fakeConnector{stream: newFakeStream()}
	svc := NewService(Deps{Live: conn, Translator: translator(t), Log: quietLog()})

	session, err := svc.OpenSession(context.Background(), SessionRequest{Lesson: lesson, Student: "زينب"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	assert.Contains(t, conn.instruction, lesson.Description)
}

func TestSession_OpenFailure(t *testing.T) {
	svc := NewService(Deps{Live: &fakeConnector{err: errors.New("dial failed")}, Translator: translator(t), Log: quietLog()})

	_, err := svc.OpenSession(context.Background(), SessionRequest{Lesson: lesson})
	assert.Error(t, err)

	_, err = NewService(Deps{Translator: translator(t), Log: quietLog()}).OpenSession(context.Background(), SessionRequest{})
	assert.ErrorIs(t, err, apperrors.ErrExternalAPI)
}

func TestSession_PumpSchedulesAndInterrupts(t *testing.T) {
	stream := newFakeStream()
	svc := NewService(Deps{Live: &fakeConnector{stream: stream}, Translator: translator(t), Log: quietLog()})

	session, err := svc.OpenSession(context.Background(), SessionRequest{Lesson: lesson})
	require.NoError(t, err)

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	session.started = start
	session.now = func() time.Time { return start }

	oneSecond := EncodePCM16(make([]float32, OutputSampleRate))
	stream.events <- LiveEvent{Audio: oneSecond}
	stream.events <- LiveEvent{Audio: oneSecond}
	stream.events <- LiveEvent{Interrupted: true}
	stream.events <- LiveEvent{Audio: oneSecond}
	close(stream.events)

	var chunks []Chunk
	interrupts := 0
	err = session.Pump(context.Background(), func(c Chunk) { chunks = append(chunks, c) }, func() { interrupts++ })
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, time.Duration(0), chunks[0].Start)
	assert.Equal(t, time.Second, chunks[1].Start)
	assert.Equal(t, time.Duration(0), chunks[2].Start, "scheduling restarts after an interrupt")
	assert.Len(t, chunks[0].Samples, OutputSampleRate)
	assert.Equal(t, 1, interrupts)
	assert.Equal(t, 1, stream.closed)
}

func TestSession_PumpStopsOnCancel(t *testing.T) {
	stream := newFakeStream()
	svc := NewService(Deps{Live: &fakeConnector{stream: stream}, Translator: translator(t), Log: quietLog()})

	session, err := svc.OpenSession(context.Background(), SessionRequest{Lesson: lesson})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Pump(ctx, nil, nil) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not stop after cancel")
	}
	assert.Equal(t, 1, stream.closed)
}
