// Package pipeline sequences media acquisition, audio extraction, vocal
// separation, energy gating, transcription, and hallucination verification
// into one synchronous request, owning every temporary resource along the way.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/hallucination"
	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/transcribe"
)

// Fatal error classes surfaced to the caller. Recoverable failures
// (separation, energy measurement) never leave their stage.
var (
	ErrAcquisition = errors.New("media acquisition failed")
	ErrExtraction  = errors.New("audio extraction failed")
	ErrEngine      = errors.New("transcription engine failed")
)

// Request identifies one media source to transcribe.
type Request struct {
	// Source is a http(s) URL or a local file path.
	Source string
	// Language hints the engine's decoding, e.g. "ko".
	Language string
}

// Result is the single structured outcome of a pipeline run. A short-circuit
// (no speech, hallucination veto) is a successful Result, not an error.
type Result struct {
	Segments            []transcribe.Segment `json:"segments"`
	FullText            string               `json:"full_text"`
	DetectedDuration    *float64             `json:"detected_duration"`
	NoSpeech            bool                 `json:"no_speech"`
	IsHallucination     bool                 `json:"is_hallucination"`
	HallucinationReason string               `json:"hallucination_reason,omitempty"`
	VocalEnergy         *float64             `json:"vocal_energy,omitempty"`
	Duration            *float64             `json:"duration"`
}

// Fetcher resolves a source to a local file; the bool reports whether the
// pipeline owns (and must delete) the file.
type Fetcher interface {
	Fetch(ctx context.Context, source string) (string, bool, error)
}

// Prober reports container duration, or nil; used for reporting only.
type Prober interface {
	Probe(ctx context.Context, path string) *float64
}

// Extractor produces a compressed audio track from media.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Separator isolates a vocal stem. Empty returns mean fall back to the mixed
// track; a non-empty workDir must be removed by the pipeline.
type Separator interface {
	Available() bool
	Separate(ctx context.Context, audioPath string) (vocals, workDir string)
}

// Gate measures vocal energy (fail-open 1.0) and judges speech presence.
type Gate interface {
	Measure(ctx context.Context, audioPath string) float64
	Speech(rms float64) bool
}

// Engine is the external speech-to-text service.
type Engine interface {
	Transcribe(ctx context.Context, audioPath, language string) (transcribe.Result, error)
}

// Detector scores transcripts for engine artifacts.
type Detector interface {
	Detect(fullText string, segments []transcribe.Segment) hallucination.Verdict
}

// Hooks are best-effort notifications to the caller's downstream system.
// They may be nil and their panics are swallowed; they never change the
// pipeline's own outcome.
type Hooks struct {
	OnFailure  func(err error)
	OnNoSpeech func()
}

func (h Hooks) fireFailure(err error) {
	if h.OnFailure == nil {
		return
	}
	defer func() { _ = recover() }()
	h.OnFailure(err)
}

func (h Hooks) fireNoSpeech() {
	if h.OnNoSpeech == nil {
		return
	}
	defer func() { _ = recover() }()
	h.OnNoSpeech()
}

// Orchestrator drives the pipeline. All collaborators are injected; there is
// no ambient state beyond the read-only configuration they carry.
type Orchestrator struct {
	Fs        afero.Fs
	Fetcher   Fetcher
	Prober    Prober
	Extractor Extractor
	Separator Separator
	Gate      Gate
	Engine    Engine
	Detector  Detector
	Hooks     Hooks
	Logger    *logging.Logger
}

// Process runs one request to a terminal state. Every temporary file and
// separation work directory created during the run is deleted before Process
// returns, on every path.
func (o *Orchestrator) Process(ctx context.Context, req Request) (Result, error) {
	scope := newCleanupScope(o.Fs, o.Logger)
	defer scope.release()

	mediaPath, owned, err := o.Fetcher.Fetch(ctx, req.Source)
	if err != nil {
		return Result{}, o.fatal(fmt.Errorf("%w: %v", ErrAcquisition, err))
	}
	if owned {
		scope.addFile(mediaPath)
	}

	duration := o.Prober.Probe(ctx, mediaPath)
	if duration != nil {
		o.Logger.Info("probed media duration", "seconds", *duration)
	} else {
		o.Logger.Info("media duration unknown")
	}

	audioPath, err := o.Extractor.Extract(ctx, mediaPath)
	if err != nil {
		return Result{}, o.fatal(fmt.Errorf("%w: %v", ErrExtraction, err))
	}
	scope.addFile(audioPath)

	transcribePath := audioPath
	var vocalEnergy *float64

	if o.Separator.Available() {
		vocals, workDir := o.Separator.Separate(ctx, audioPath)
		if workDir != "" {
			scope.addDir(workDir)
		}
		track := audioPath
		if vocals != "" {
			track = vocals
		}

		rms := o.Gate.Measure(ctx, track)
		vocalEnergy = &rms
		o.Logger.Info("vocal energy measured", "rms", rms)

		if !o.Gate.Speech(rms) {
			o.Logger.Info("no speech detected, skipping transcription", "rms", rms)
			o.Hooks.fireNoSpeech()
			return Result{
				Segments:    []transcribe.Segment{},
				NoSpeech:    true,
				VocalEnergy: vocalEnergy,
				Duration:    duration,
			}, nil
		}
		transcribePath = track
	}

	tr, err := o.Engine.Transcribe(ctx, transcribePath, req.Language)
	if err != nil {
		return Result{}, o.fatal(fmt.Errorf("%w: %v", ErrEngine, err))
	}

	res := Result{
		Segments:         tr.Segments,
		FullText:         tr.FullText,
		DetectedDuration: tr.DetectedDuration,
		VocalEnergy:      vocalEnergy,
		Duration:         duration,
	}
	if res.Segments == nil {
		res.Segments = []transcribe.Segment{}
	}

	verdict := o.Detector.Detect(tr.FullText, tr.Segments)
	if verdict.IsHallucination() {
		o.Logger.Warn("hallucination veto", "score", verdict.Score, "reason", verdict.Reason())
		res.Segments = []transcribe.Segment{}
		res.FullText = ""
		res.IsHallucination = true
		res.HallucinationReason = verdict.Reason()
		return res, nil
	}
	if verdict.Score > 0 {
		o.Logger.Debug("hallucination checks below veto", "score", verdict.Score, "reason", verdict.Reason())
	}

	return res, nil
}

// fatal notifies the caller's failure hook before the error surfaces.
func (o *Orchestrator) fatal(err error) error {
	o.Logger.Error("pipeline aborted", "error", err)
	o.Hooks.fireFailure(err)
	return err
}
