package speech

import (
	"context"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ent0n29/symptomcheck/internal/audio"
)

// AudioSink plays PCM16LE mono audio and returns once playback has finished.
type AudioSink interface {
	Play(ctx context.Context, pcm []byte, sampleRate int) error
}

var openAIVoices = []string{"alloy", "ash", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer"}

// OpenAISynthesizer renders utterances with the OpenAI speech API and plays
// the PCM through a sink.
type OpenAISynthesizer struct {
	client *openai.Client
	model  string
	voice  string
	sink   AudioSink
}

func NewOpenAISynthesizer(apiKey, baseURL, model, voice string, sink AudioSink) *OpenAISynthesizer {
	cfg := openai.DefaultConfig(apiKey)
	if strings.TrimSpace(baseURL) != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	return &OpenAISynthesizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		voice:  voice,
		sink:   sink,
	}
}

func (s *OpenAISynthesizer) Voices(context.Context) ([]Voice, error) {
	out := make([]Voice, 0, len(openAIVoices))
	for _, v := range openAIVoices {
		out = append(out, Voice{ID: v, Name: v, Default: v == s.voice})
	}
	return out, nil
}

func (s *OpenAISynthesizer) Speak(ctx context.Context, u Utterance) error {
	voice := u.Voice.ID
	if voice == "" {
		voice = s.voice
	}
	speed := u.Rate
	if speed <= 0 {
		speed = 1
	}
	res, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.model),
		Input:          u.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          speed,
	})
	if err != nil {
		return fmt.Errorf("openai speech: %w", err)
	}
	defer res.Close()

	pcm, err := io.ReadAll(res)
	if err != nil {
		return fmt.Errorf("read speech audio: %w", err)
	}
	if s.sink == nil {
		return nil
	}
	return s.sink.Play(ctx, pcm, audio.OutputSampleRate)
}
