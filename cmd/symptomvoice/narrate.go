package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ent0n29/symptomcheck/internal/audio"
	"github.com/ent0n29/symptomcheck/internal/audiodev"
	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/logging"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/realtime"
	"github.com/ent0n29/symptomcheck/internal/speech"
)

func newNarrateCmd() *cobra.Command {
	var (
		voice string
		rate  float64
	)
	cmd := &cobra.Command{
		Use:   "narrate [text...]",
		Short: "Read text aloud with server-side speech synthesis",
		Long:  "Read text aloud through the OpenAI speech API. Without arguments the text is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if strings.TrimSpace(text) == "" {
				raw, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				text = string(raw)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if rate <= 0 {
				rate = cfg.DefaultSpeechRate
			}
			return narrate(cmd.Context(), cfg, text, prefs.VoicePreferences{Rate: prefs.ClampRate(rate), VoiceID: voice})
		},
	}
	cmd.Flags().StringVar(&voice, "voice", "", "OpenAI voice id (defaults to OPENAI_TTS_VOICE)")
	cmd.Flags().Float64Var(&rate, "rate", 0, "speech rate within [0.5, 1.5]")
	return cmd
}

func narrate(parent context.Context, cfg config.Config, text string, vp prefs.VoicePreferences) error {
	if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
		return errors.New("OPENAI_API_KEY is required for narration")
	}
	if strings.TrimSpace(speech.Sanitize(text)) == "" {
		return errors.New("nothing to narrate")
	}
	log := logging.New(cfg.LogLevel, "console")
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := audiodev.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer audiodev.Terminate()

	out, err := audiodev.Devices{Logger: log}.OpenOutput(ctx, audio.OutputSampleRate)
	if err != nil {
		return err
	}
	defer out.Close()

	synth := speech.NewOpenAISynthesizer(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITTSModel, cfg.OpenAITTSVoice, realtime.PlaybackSink{Output: out})
	q := speech.NewQueue(speech.QueueConfig{
		Synthesizer: synth,
		Locale:      cfg.SpeechLocale,
		Preferences: func(context.Context) prefs.VoicePreferences { return vp },
		Logger:      log,
	})

	q.Speak(ctx, text)
	q.Wait()
	if ctx.Err() != nil {
		q.Stop()
	}
	return nil
}
