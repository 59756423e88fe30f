package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/monimoni12/naos/internal/config"
	"github.com/monimoni12/naos/internal/energy"
	"github.com/monimoni12/naos/internal/hallucination"
	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/media"
	"github.com/monimoni12/naos/internal/output"
	"github.com/monimoni12/naos/internal/pipeline"
	"github.com/monimoni12/naos/internal/separate"
	"github.com/monimoni12/naos/internal/toolrun"
	"github.com/monimoni12/naos/internal/transcribe"
)

// NewRootCommand wires the full pipeline behind a single transcription run.
func NewRootCommand(fs afero.Fs, cfg *config.Config, logger *logging.Logger) *cobra.Command {
	var (
		language string
		format   string
		outPath  string
	)

	cmd := &cobra.Command{
		Use:   "naos-asr <url-or-path>",
		Short: "Turn a media file into a verified, speech-only transcript.",
		Long: `naos-asr extracts audio from a local file or remote URL, optionally isolates
the vocal stem, gates on vocal energy to skip music-only clips, transcribes
speech with segment timestamps, and rejects transcripts that look like
engine hallucinations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if language == "" {
				language = cfg.LanguageHint
			}

			heuristics, err := hallucination.LoadHeuristics(fs, cfg.HeuristicsFile)
			if err != nil {
				return err
			}

			runner := toolrun.NewExecRunner(logger)
			extractor := &media.Extractor{Fs: fs, Runner: runner, Logger: logger, TmpDir: cfg.TmpDir}
			separator := &separate.Separator{
				Fs:        fs,
				Runner:    runner,
				Logger:    logger,
				PythonBin: cfg.PythonBin,
				Model:     cfg.SeparationModel,
				TmpDir:    cfg.TmpDir,
			}
			separator.Detect(cmd.Context())

			orch := &pipeline.Orchestrator{
				Fs:        fs,
				Fetcher:   &media.Fetcher{Fs: fs, Logger: logger, TmpDir: cfg.TmpDir},
				Prober:    &media.Prober{Runner: runner, Logger: logger},
				Extractor: extractor,
				Separator: separator,
				Gate: &energy.Gate{
					Fs:        fs,
					Runner:    runner,
					Logger:    logger,
					Threshold: cfg.EnergyThreshold,
					TmpDir:    cfg.TmpDir,
				},
				Engine: &transcribe.Client{
					APIKey:     cfg.OpenAIAPIKey,
					Model:      cfg.WhisperModel,
					BaseURL:    cfg.WhisperBaseURL,
					HTTPClient: http.DefaultClient,
					Fs:         fs,
					Compress:   extractor.Compress,
					Logger:     logger,
				},
				Detector: &hallucination.Detector{Heuristics: heuristics},
				Logger:   logger,
			}

			res, err := orch.Process(cmd.Context(), pipeline.Request{Source: args[0], Language: language})
			if err != nil {
				return err
			}

			var rendered string
			switch format {
			case "json":
				rendered, err = output.RenderJSON(res)
				if err != nil {
					return err
				}
			case "markdown":
				rendered = output.RenderMarkdown(output.Metadata{
					Source:    args[0],
					Language:  language,
					Model:     cfg.WhisperModel,
					Generated: time.Now().Format(time.RFC3339),
				}, res)
			default:
				return fmt.Errorf("unknown output format: %s", format)
			}

			if outPath == "" {
				cmd.OutOrStdout().Write([]byte(rendered))
				return nil
			}
			return afero.WriteFile(fs, outPath, []byte(rendered), 0o644)
		},
	}

	cmd.Flags().StringVarP(&language, "language", "l", "", "Language hint for the engine (default from config)")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Output format: json|markdown")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write output to a file instead of stdout")
	cmd.SetOut(os.Stdout)
	return cmd
}
