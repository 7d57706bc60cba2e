package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/app"
	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/connectivity"
	"github.com/ent0n29/symptomcheck/internal/credentials"
	"github.com/ent0n29/symptomcheck/internal/generator"
	"github.com/ent0n29/symptomcheck/internal/logging"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		offline bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "analyze [symptoms...]",
		Short: "Analyze a symptom description once and print the result",
		Long:  "Analyze a symptom description once. Without arguments the description is read from stdin.",
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
			log := logging.New(cfg.LogLevel, "console")

			gen, err := generator.New(generator.Config{
				Mode:          cfg.GeneratorMode,
				GeminiModel:   cfg.GeminiTextModel,
				OpenAIModel:   cfg.OpenAIModel,
				OpenAIBaseURL: cfg.OpenAIBaseURL,
				HTTPURL:       cfg.AnalyzerHTTPURL,
			})
			if err != nil {
				return err
			}
			keys := app.KeyResolvers{
				Config:    cfg,
				Generator: gen.Name(),
				Keychain:  credentials.NewKeychain(cfg.KeyringService),
				Logger:    log,
			}

			var online analysis.Connectivity = connectivity.NewProbe(cfg.ConnectivityProbeURL, cfg.ConnectivityTimeout, cfg.ConnectivityCacheTTL)
			if offline {
				online = connectivity.Static(false)
			}
			p := analysis.NewPipeline(analysis.Options{
				Generator:          gen,
				Keys:               keys.Analyzer(""),
				Connectivity:       online,
				CredentialOptional: !generator.RequiresCredential(gen),
				Timeout:            cfg.AnalysisTimeout,
				Logger:             log,
			})

			out, err := p.Run(cmd.Context(), text)
			if errors.Is(err, analysis.ErrEmptySymptoms) {
				return errors.New(analysis.UserMessage(err))
			}
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderOutcome(out))
			return nil
		},
	}
	cmd.Flags().BoolVar(&offline, "offline", false, "skip the online backend and use the built-in rules")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw outcome as JSON")
	return cmd
}
