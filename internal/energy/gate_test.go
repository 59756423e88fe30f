package energy

import (
	"context"
	"errors"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/toolrun"
)

// writeWav encodes constant-amplitude 16-bit mono PCM at the given path.
func writeWav(t *testing.T, fs afero.Fs, path string, amplitude, samples int) {
	t.Helper()
	f, err := fs.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	data := make([]int, samples)
	for i := range data {
		data[i] = amplitude
	}
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

// fakeTranscode returns a runner that pretends to be ffmpeg by writing the
// prepared samples to the requested output path.
func fakeTranscode(t *testing.T, fs afero.Fs, amplitude, samples int) toolrun.Runner {
	t.Helper()
	return toolrun.RunnerFunc(func(_ context.Context, spec toolrun.Spec) (toolrun.Result, error) {
		out := spec.Args[len(spec.Args)-1]
		writeWav(t, fs, out, amplitude, samples)
		return toolrun.Result{}, nil
	})
}

func newGate(fs afero.Fs, runner toolrun.Runner) *Gate {
	return &Gate{
		Fs:        fs,
		Runner:    runner,
		Logger:    logging.NewTestLogger(),
		Threshold: 0.01,
		TmpDir:    "/tmp",
	}
}

func TestMeasureLoudTrack(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	g := newGate(fs, fakeTranscode(t, fs, 3277, 1600))

	rms := g.Measure(context.Background(), "/tmp/vocals.mp3")
	assert.InDelta(t, 0.1, rms, 0.001)
	assert.True(t, g.Speech(rms))
}

func TestMeasureQuietTrack(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	g := newGate(fs, fakeTranscode(t, fs, 33, 1600))

	rms := g.Measure(context.Background(), "/tmp/vocals.mp3")
	assert.Less(t, rms, 0.01)
	assert.False(t, g.Speech(rms))
}

func TestMeasureSilence(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	g := newGate(fs, fakeTranscode(t, fs, 0, 1600))

	rms := g.Measure(context.Background(), "/tmp/vocals.mp3")
	assert.Zero(t, rms)
	assert.False(t, g.Speech(rms))
}

func TestMeasureFailOpenOnTranscodeError(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	runner := toolrun.RunnerFunc(func(context.Context, toolrun.Spec) (toolrun.Result, error) {
		return toolrun.Result{}, errors.New("ffmpeg not found")
	})
	g := newGate(fs, runner)

	rms := g.Measure(context.Background(), "/tmp/vocals.mp3")
	assert.Equal(t, 1.0, rms)
	assert.True(t, g.Speech(rms))
}

func TestMeasureFailOpenOnMissingOutput(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	// Transcode "succeeds" but never writes the wav.
	runner := toolrun.RunnerFunc(func(context.Context, toolrun.Spec) (toolrun.Result, error) {
		return toolrun.Result{}, nil
	})
	g := newGate(fs, runner)

	assert.Equal(t, 1.0, g.Measure(context.Background(), "/tmp/vocals.mp3"))
}

func TestMeasureFailOpenOnCorruptWav(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	runner := toolrun.RunnerFunc(func(_ context.Context, spec toolrun.Spec) (toolrun.Result, error) {
		out := spec.Args[len(spec.Args)-1]
		require.NoError(t, afero.WriteFile(fs, out, []byte("not a wav"), 0o644))
		return toolrun.Result{}, nil
	})
	g := newGate(fs, runner)

	assert.Equal(t, 1.0, g.Measure(context.Background(), "/tmp/vocals.mp3"))
}

func TestMeasureRemovesTempWav(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	var tmpOut string
	runner := toolrun.RunnerFunc(func(_ context.Context, spec toolrun.Spec) (toolrun.Result, error) {
		tmpOut = spec.Args[len(spec.Args)-1]
		writeWav(t, fs, tmpOut, 100, 160)
		return toolrun.Result{}, nil
	})
	g := newGate(fs, runner)

	g.Measure(context.Background(), "/tmp/vocals.mp3")
	require.NotEmpty(t, tmpOut)
	exists, err := afero.Exists(fs, tmpOut)
	require.NoError(t, err)
	assert.False(t, exists, "transcode scratch file must be removed")
}
