package tutoring

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	apperrors "github.com/Proton-105/sawti-academy/internal/errors"
)

const (
	chatTemperature = 0.7
	liveVoice       = "Puck"
)

// GeminiClient implements Generator and LiveConnector on the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	chatModel string
	liveModel string
	log       *slog.Logger
}

var (
	_ Generator     = (*GeminiClient)(nil)
	_ LiveConnector = (*GeminiClient)(nil)
)

func NewGeminiClient(ctx context.Context, apiKey, chatModel, liveModel string, log *slog.Logger) (*GeminiClient, error) {
	if log == nil {
		log = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiClient{
		client:    client,
		chatModel: chatModel,
		liveModel: liveModel,
		log:       log,
	}, nil
}

func (g *GeminiClient) Generate(ctx context.Context, instruction string, transcript []Turn) (string, error) {
	contents := make([]*genai.Content, 0, len(transcript))
	for _, turn := range transcript {
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.Role(turn.Role)))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.chatModel, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](chatTemperature),
	})
	if err != nil {
		return "", apperrors.NewExternalAPIError("gemini", err)
	}

	return resp.Text(), nil
}

func (g *GeminiClient) Connect(ctx context.Context, instruction string) (LiveStream, error) {
	session, err := g.client.Live.Connect(ctx, g.liveModel, &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: liveVoice},
			},
		},
		SystemInstruction: genai.NewContentFromText(instruction, genai.RoleUser),
	})
	if err != nil {
		return nil, apperrors.NewExternalAPIError("gemini live", err)
	}

	return &geminiStream{session: session}, nil
}

type geminiStream struct {
	session *genai.Session
}

func (s *geminiStream) SendAudio(_ context.Context, pcm []byte) error {
	return s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: InputMIMEType},
	})
}

func (s *geminiStream) Receive() (LiveEvent, error) {
	msg, err := s.session.Receive()
	if err != nil {
		return LiveEvent{}, err
	}

	var ev LiveEvent
	content := msg.ServerContent
	if content == nil {
		return ev, nil
	}

	ev.Interrupted = content.Interrupted
	ev.TurnComplete = content.TurnComplete
	if content.ModelTurn != nil {
		for _, part := range content.ModelTurn.Parts {
			if part != nil && part.InlineData != nil {
				ev.Audio = append(ev.Audio, part.InlineData.Data...)
			}
		}
	}

	return ev, nil
}

func (s *geminiStream) Close() error {
	return s.session.Close()
}
