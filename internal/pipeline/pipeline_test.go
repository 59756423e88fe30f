package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monimoni12/naos/internal/hallucination"
	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/transcribe"
)

type fakeFetcher struct {
	path  string
	owned bool
	err   error
}

func (f fakeFetcher) Fetch(context.Context, string) (string, bool, error) {
	return f.path, f.owned, f.err
}

type fakeProber struct{ duration *float64 }

func (f fakeProber) Probe(context.Context, string) *float64 { return f.duration }

type fakeExtractor struct {
	fs   afero.Fs
	path string
	err  error
}

func (f fakeExtractor) Extract(context.Context, string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	_ = afero.WriteFile(f.fs, f.path, []byte("mp3"), 0o644)
	return f.path, nil
}

type fakeSeparator struct {
	available bool
	fs        afero.Fs
	vocals    string
	workDir   string
	calls     int
}

func (f *fakeSeparator) Available() bool { return f.available }

func (f *fakeSeparator) Separate(context.Context, string) (string, string) {
	f.calls++
	if f.workDir != "" {
		_ = f.fs.MkdirAll(f.workDir, 0o755)
	}
	if f.vocals != "" {
		_ = afero.WriteFile(f.fs, f.vocals, []byte("vocals"), 0o644)
	}
	return f.vocals, f.workDir
}

type fakeGate struct {
	rms       float64
	threshold float64
	measured  []string
}

func (f *fakeGate) Measure(_ context.Context, path string) float64 {
	f.measured = append(f.measured, path)
	return f.rms
}

func (f *fakeGate) Speech(rms float64) bool { return rms >= f.threshold }

type fakeEngine struct {
	result transcribe.Result
	err    error
	calls  int
	paths  []string
}

func (f *fakeEngine) Transcribe(_ context.Context, path, _ string) (transcribe.Result, error) {
	f.calls++
	f.paths = append(f.paths, path)
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return f.result, nil
}

func ptr(v float64) *float64 { return &v }

func speechResult() transcribe.Result {
	return transcribe.Result{
		Segments: []transcribe.Segment{
			{Index: 0, Start: 0, End: 2.5, Text: "오늘은 계란후라이를"},
			{Index: 1, Start: 2.5, End: 5, Text: "만들어볼게요"},
		},
		FullText:         "오늘은 계란후라이를 만들어볼게요",
		DetectedDuration: ptr(5),
	}
}

type harness struct {
	fs        afero.Fs
	fetcher   fakeFetcher
	separator *fakeSeparator
	gate      *fakeGate
	engine    *fakeEngine
	hooks     Hooks
}

func newHarness() *harness {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/media/input.mp4", []byte("video"), 0o644)
	return &harness{
		fs:      fs,
		fetcher: fakeFetcher{path: "/media/input.mp4"},
		separator: &fakeSeparator{
			available: true,
			fs:        fs,
			vocals:    "/tmp/demucs/htdemucs/audio/vocals.mp3",
			workDir:   "/tmp/demucs",
		},
		gate:   &fakeGate{rms: 0.2, threshold: 0.01},
		engine: &fakeEngine{result: speechResult()},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return &Orchestrator{
		Fs:        h.fs,
		Fetcher:   h.fetcher,
		Prober:    fakeProber{duration: ptr(61.27)},
		Extractor: fakeExtractor{fs: h.fs, path: "/tmp/audio.mp3"},
		Separator: h.separator,
		Gate:      h.gate,
		Engine:    h.engine,
		Detector:  &hallucination.Detector{Heuristics: hallucination.DefaultHeuristics()},
		Hooks:     h.hooks,
		Logger:    logging.NewTestLogger(),
	}
}

func TestProcessHappyPath(t *testing.T) {
	t.Parallel()
	h := newHarness()

	res, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4", Language: "ko"})
	require.NoError(t, err)

	assert.False(t, res.NoSpeech)
	assert.False(t, res.IsHallucination)
	assert.Equal(t, "오늘은 계란후라이를 만들어볼게요", res.FullText)
	require.Len(t, res.Segments, 2)
	require.NotNil(t, res.DetectedDuration)
	assert.Equal(t, 5.0, *res.DetectedDuration)
	require.NotNil(t, res.Duration)
	assert.Equal(t, 61.27, *res.Duration)
	require.NotNil(t, res.VocalEnergy)
	assert.Equal(t, 0.2, *res.VocalEnergy)

	// Transcription ran on the isolated vocal stem.
	assert.Equal(t, []string{"/tmp/demucs/htdemucs/audio/vocals.mp3"}, h.engine.paths)
}

func TestProcessSegmentsMonotonic(t *testing.T) {
	t.Parallel()
	h := newHarness()

	res, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.NoError(t, err)
	for i, s := range res.Segments {
		assert.GreaterOrEqual(t, s.End, s.Start)
		if i > 0 {
			assert.GreaterOrEqual(t, s.Start, res.Segments[i-1].Start)
		}
	}
}

func TestProcessNoSpeechShortCircuit(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.gate.rms = 0.002
	var noSpeechFired bool
	h.hooks = Hooks{OnNoSpeech: func() { noSpeechFired = true }}

	res, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.NoError(t, err)

	assert.True(t, res.NoSpeech)
	assert.Empty(t, res.Segments)
	assert.Empty(t, res.FullText)
	assert.False(t, res.IsHallucination)
	require.NotNil(t, res.VocalEnergy)
	assert.Equal(t, 0.002, *res.VocalEnergy)
	assert.True(t, noSpeechFired)

	// Cost-avoidance contract: the engine is never invoked.
	assert.Zero(t, h.engine.calls)
}

func TestProcessSeparationFailureFallsBack(t *testing.T) {
	t.Parallel()
	h := newHarness()
	// Separator attempted but produced nothing (timeout, missing stem...).
	h.separator.vocals = ""
	h.separator.workDir = ""

	res, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.NoError(t, err)

	assert.False(t, res.NoSpeech)
	// Energy was measured on the mixed track and the request still succeeded.
	assert.Equal(t, []string{"/tmp/audio.mp3"}, h.gate.measured)
	assert.Equal(t, []string{"/tmp/audio.mp3"}, h.engine.paths)
	require.NotNil(t, res.VocalEnergy)
	assert.Equal(t, 0.2, *res.VocalEnergy)
}

func TestProcessSeparatorUnavailableBypassesGate(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.separator.available = false

	res, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.NoError(t, err)

	assert.Zero(t, h.separator.calls)
	assert.Empty(t, h.gate.measured)
	assert.Nil(t, res.VocalEnergy)
	assert.Equal(t, []string{"/tmp/audio.mp3"}, h.engine.paths)
}

func TestProcessHallucinationVeto(t *testing.T) {
	t.Parallel()
	h := newHarness()
	segs := make([]transcribe.Segment, 6)
	for i := range segs {
		segs[i] = transcribe.Segment{Index: i, Start: float64(i), End: float64(i + 1), Text: "구독과 좋아요"}
	}
	h.engine.result = transcribe.Result{
		Segments:         segs,
		FullText:         "구독과 좋아요 구독과 좋아요 구독과 좋아요",
		DetectedDuration: ptr(6),
	}

	res, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.NoError(t, err, "a veto is a successful terminal state")

	assert.True(t, res.IsHallucination)
	assert.Empty(t, res.Segments)
	assert.Empty(t, res.FullText)
	assert.NotEmpty(t, res.HallucinationReason)
	assert.False(t, res.NoSpeech)
	// Detected duration survives the clearing.
	require.NotNil(t, res.DetectedDuration)
	assert.Equal(t, 6.0, *res.DetectedDuration)
}

func TestProcessAcquisitionFailureIsFatal(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.fetcher = fakeFetcher{err: errors.New("connection refused")}

	_, err := h.orchestrator().Process(context.Background(), Request{Source: "https://cdn.example.com/v.mp4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAcquisition)
	assert.Zero(t, h.engine.calls)
}

func TestProcessExtractionFailureIsFatal(t *testing.T) {
	t.Parallel()
	h := newHarness()
	o := h.orchestrator()
	o.Extractor = fakeExtractor{err: errors.New("no audio stream")}

	_, err := o.Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Zero(t, h.engine.calls)
}

func TestProcessEngineFailureFiresHookThenSurfaces(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.engine.err = errors.New("engine http 500")
	var hookErr error
	h.hooks = Hooks{OnFailure: func(err error) { hookErr = err }}

	_, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEngine)
	require.Error(t, hookErr)
	assert.Contains(t, hookErr.Error(), "engine http 500")
}

func TestProcessHookPanicsAreSwallowed(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.gate.rms = 0.001
	h.hooks = Hooks{OnNoSpeech: func() { panic("downstream exploded") }}

	res, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.NoError(t, err)
	assert.True(t, res.NoSpeech)
}

func TestProcessCleansUpOnSuccess(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.fetcher = fakeFetcher{path: "/tmp/naos_media_dl.mp4", owned: true}
	require.NoError(t, afero.WriteFile(h.fs, "/tmp/naos_media_dl.mp4", []byte("v"), 0o644))

	_, err := h.orchestrator().Process(context.Background(), Request{Source: "https://cdn.example.com/v.mp4"})
	require.NoError(t, err)

	for _, p := range []string{"/tmp/naos_media_dl.mp4", "/tmp/audio.mp3", "/tmp/demucs"} {
		exists, statErr := afero.Exists(h.fs, p)
		require.NoError(t, statErr)
		assert.False(t, exists, "leftover resource: %s", p)
	}
}

func TestProcessCleansUpOnEngineFailure(t *testing.T) {
	t.Parallel()
	h := newHarness()
	h.engine.err = errors.New("boom")

	_, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.Error(t, err)

	for _, p := range []string{"/tmp/audio.mp3", "/tmp/demucs"} {
		exists, statErr := afero.Exists(h.fs, p)
		require.NoError(t, statErr)
		assert.False(t, exists, "leftover resource: %s", p)
	}
}

func TestProcessDoesNotDeleteLocalSource(t *testing.T) {
	t.Parallel()
	h := newHarness()

	_, err := h.orchestrator().Process(context.Background(), Request{Source: "/media/input.mp4"})
	require.NoError(t, err)

	exists, statErr := afero.Exists(h.fs, "/media/input.mp4")
	require.NoError(t, statErr)
	assert.True(t, exists, "caller-provided files are not request-owned")
}
