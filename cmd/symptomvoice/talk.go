package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ent0n29/symptomcheck/internal/app"
	"github.com/ent0n29/symptomcheck/internal/audio"
	"github.com/ent0n29/symptomcheck/internal/audiodev"
	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/credentials"
	"github.com/ent0n29/symptomcheck/internal/generator"
	"github.com/ent0n29/symptomcheck/internal/logging"
	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/realtime"
	"github.com/ent0n29/symptomcheck/internal/report"
)

func newTalkCmd() *cobra.Command {
	var (
		record string
		voice  string
	)
	cmd := &cobra.Command{
		Use:   "talk",
		Short: "Start a voice conversation; Ctrl-C ends it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if voice != "" {
				cfg.LiveVoice = voice
			}
			return talk(cmd.Context(), cfg, record)
		},
	}
	cmd.Flags().StringVar(&record, "record", "", "write the assistant's audio to this WAV file")
	cmd.Flags().StringVar(&voice, "voice", "", "prebuilt voice name (overrides LIVE_VOICE)")
	return cmd
}

func talk(parent context.Context, cfg config.Config, record string) error {
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

	keys := app.KeyResolvers{
		Config:    cfg,
		Generator: strings.ToLower(strings.TrimSpace(cfg.GeneratorMode)),
		Keychain:  credentials.NewKeychain(cfg.KeyringService),
		Logger:    log,
	}
	backend := app.LiveBackendFactory(cfg, keys, log)("")

	var rec *audio.Recorder
	if record != "" {
		rec = audio.NewRecorder(record, audio.OutputSampleRate)
		defer func() {
			if err := rec.Close(); err != nil {
				log.Warn().Err(err).Msg("write recording")
			}
		}()
	}

	failed := make(chan error, 1)
	sessCfg := realtime.Config{
		Backend:           backend,
		Devices:           audiodev.Devices{Logger: log},
		SystemInstruction: generator.Persona,
		Voice:             cfg.LiveVoice,
		OnState: func(s realtime.State) {
			fmt.Println(dimStyle.Render("• " + string(s)))
		},
		OnAnalysis: func(a report.Analysis) {
			fmt.Println(renderAnalysis(a))
		},
		OnError: func(err error) {
			select {
			case failed <- err:
			default:
			}
		},
		OnInterrupt: func() {
			fmt.Println(dimStyle.Render("• interrupted"))
		},
		Logger:  log,
		Metrics: observability.NewMetrics(cfg.MetricsNamespace),
	}
	if rec != nil {
		sessCfg.OnAudio = func(pcm []byte) { _, _ = rec.Write(pcm) }
	}
	sess := realtime.NewSession(sessCfg)

	fmt.Println(titleStyle.Render("ผู้ช่วยสุขภาพ") + " " + dimStyle.Render("(Ctrl-C to stop)"))
	if err := sess.Connect(ctx); err != nil {
		return errors.New(realtime.UserMessage(err))
	}
	defer sess.Disconnect()

	select {
	case <-ctx.Done():
		fmt.Println(successStyle.Render("bye"))
		return nil
	case err := <-failed:
		return errors.New(realtime.UserMessage(err))
	}
}

var analysisTitles = [...]string{"อาการที่ตรวจพบ", "คำแนะนำเบื้องต้น", "ข้อควรระวัง"}

func renderAnalysis(a report.Analysis) string {
	var b strings.Builder
	for i, body := range []string{a.Symptoms, a.Advice, a.Precautions} {
		if strings.TrimSpace(body) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(titleStyle.Render(analysisTitles[i]))
		b.WriteString("\n")
		b.WriteString(report.PlainText(report.Render(body)))
		b.WriteString("\n")
	}
	return b.String()
}
