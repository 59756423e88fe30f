// Package energy decides, before paying for transcription, whether an audio
// track plausibly contains speech at all.
package energy

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/toolrun"
)

const transcodeTimeout = 30 * time.Second

// fullScale16 normalizes RMS against the 16-bit PCM range.
const fullScale16 = 32768.0

// Gate computes an RMS loudness metric for a vocal track. Any failure along
// the measurement path reports full energy, so the caller always proceeds.
type Gate struct {
	Fs        afero.Fs
	Runner    toolrun.Runner
	Logger    *logging.Logger
	Threshold float64
	TmpDir    string
}

// Measure transcodes the track to 16kHz mono 16-bit PCM, reads every sample,
// and returns sqrt(mean(sample^2))/32768, nominally in [0,1]. Returns 1.0 on
// any failure.
func (g *Gate) Measure(ctx context.Context, audioPath string) float64 {
	tmpWav := filepath.Join(g.TmpDir, "naos_energy_"+uuid.New().String()+".wav")
	defer func() { _ = g.Fs.Remove(tmpWav) }()

	_, err := g.Runner.Run(ctx, toolrun.Spec{
		Command: "ffmpeg",
		Args: []string{
			"-i", audioPath,
			"-ar", "16000",
			"-ac", "1",
			"-y", tmpWav,
		},
		Timeout: transcodeTimeout,
	})
	if err != nil {
		g.Logger.Warn("energy transcode failed, assuming speech present", "error", err)
		return 1.0
	}

	rms, err := g.rmsOf(tmpWav)
	if err != nil {
		g.Logger.Warn("energy analysis failed, assuming speech present", "error", err)
		return 1.0
	}
	return rms
}

// Speech reports whether the measured energy clears the threshold.
func (g *Gate) Speech(rms float64) bool {
	return rms >= g.Threshold
}

func (g *Gate) rmsOf(wavPath string) (float64, error) {
	f, err := g.Fs.Open(wavPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return 0, err
	}
	if buf == nil || len(buf.Data) == 0 {
		return 1.0, nil
	}

	var sumSquares float64
	for _, s := range buf.Data {
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares/float64(len(buf.Data))) / fullScale16, nil
}
