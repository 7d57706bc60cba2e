package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/ent0n29/symptomcheck/internal/reliability"
)

const (
	DefaultLiveModel = "gemini-2.5-flash-native-audio-preview-09-2025"
	DefaultLiveVoice = "Kore"

	inputMIMEType  = "audio/pcm;rate=16000"
	connectRetries = 2
)

// KeyFunc resolves the backend credential at connect time.
type KeyFunc func(ctx context.Context) (string, bool)

// GeminiBackend opens Gemini Live conversations.
type GeminiBackend struct {
	model string
	keys  KeyFunc
	log   zerolog.Logger
}

func NewGeminiBackend(model string, keys KeyFunc, log zerolog.Logger) *GeminiBackend {
	if strings.TrimSpace(model) == "" {
		model = DefaultLiveModel
	}
	return &GeminiBackend{model: model, keys: keys, log: log.With().Str("component", "gemini_live").Logger()}
}

func (b *GeminiBackend) Name() string { return "gemini" }

func (b *GeminiBackend) Connect(ctx context.Context, cfg ConnectConfig) (Conn, error) {
	key, ok := "", false
	if b.keys != nil {
		key, ok = b.keys(ctx)
	}
	if !ok || strings.TrimSpace(key) == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: key, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}

	live := liveConfig(cfg)
	for attempt := 0; ; attempt++ {
		session, err := client.Live.Connect(ctx, b.model, live)
		if err == nil {
			return &geminiConn{session: session}, nil
		}
		if attempt >= connectRetries || !reliability.IsRetryable(err) {
			return nil, fmt.Errorf("gemini live connect: %w", err)
		}
		wait := reliability.ExponentialBackoff(attempt, 250*time.Millisecond, 2*time.Second)
		b.log.Debug().Err(err).Int("attempt", attempt+1).Dur("backoff", wait).Msg("retrying live connect")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func liveConfig(cfg ConnectConfig) *genai.LiveConnectConfig {
	voice := cfg.Voice
	if voice == "" {
		voice = DefaultLiveVoice
	}
	return &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		},
		SystemInstruction: genai.NewContentFromText(cfg.SystemInstruction, genai.RoleUser),
		Tools: []*genai.Tool{
			{FunctionDeclarations: []*genai.FunctionDeclaration{UpdateAnalysisDeclaration()}},
		},
	}
}

type geminiConn struct {
	session *genai.Session
}

func (c *geminiConn) SendAudio(_ context.Context, pcm []byte) error {
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: inputMIMEType},
	})
}

func (c *geminiConn) SendToolResponse(_ context.Context, resp ToolResponse) error {
	return c.session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       resp.ID,
			Name:     resp.Name,
			Response: resp.Response,
		}},
	})
}

func (c *geminiConn) Receive(context.Context) (Message, error) {
	msg, err := c.session.Receive()
	if err != nil {
		return Message{}, err
	}
	return fromServerMessage(msg), nil
}

func (c *geminiConn) Close() error {
	return c.session.Close()
}

func fromServerMessage(msg *genai.LiveServerMessage) Message {
	var out Message
	if msg == nil {
		return out
	}
	if sc := msg.ServerContent; sc != nil {
		out.Interrupted = sc.Interrupted
		out.TurnComplete = sc.TurnComplete
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part != nil && part.InlineData != nil {
					out.Audio = append(out.Audio, part.InlineData.Data...)
				}
			}
		}
	}
	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			out.ToolCalls = append(out.ToolCalls, ToolCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
	}
	return out
}
