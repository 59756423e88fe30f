// Package separate isolates the vocal stem from mixed audio using the demucs
// two-stem source-separation model, invoked as an external CLI.
package separate

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/toolrun"
)

const (
	detectTimeout   = 10 * time.Second
	separateTimeout = 300 * time.Second
)

// Separator shells out to demucs (python -m demucs.separate). Every failure
// mode is recoverable: the pipeline falls back to the mixed track.
type Separator struct {
	Fs        afero.Fs
	Runner    toolrun.Runner
	Logger    *logging.Logger
	PythonBin string
	Model     string
	TmpDir    string

	available bool
}

// Detect probes once at startup whether the demucs CLI is installed.
// Separation stays disabled for the process lifetime when it is not.
func (s *Separator) Detect(ctx context.Context) bool {
	_, err := s.Runner.Run(ctx, toolrun.Spec{
		Command: s.PythonBin,
		Args:    []string{"-m", "demucs.separate", "--help"},
		Timeout: detectTimeout,
	})
	s.available = err == nil
	if s.available {
		s.Logger.Info("vocal separation enabled", "model", s.Model)
	} else {
		s.Logger.Warn("demucs not installed, vocal separation disabled", "error", err)
	}
	return s.available
}

// Available reports the result of the last Detect call.
func (s *Separator) Available() bool {
	return s.available
}

// Separate runs two-stem separation on the audio at path. It returns the
// vocals stem path and the work directory the caller must remove, or empty
// strings when the tool errors, times out, or the expected stem is missing.
// A failed run leaves nothing behind: the work directory is removed here.
func (s *Separator) Separate(ctx context.Context, audioPath string) (string, string) {
	workDir := filepath.Join(s.TmpDir, "naos_demucs_"+uuid.New().String())
	if err := s.Fs.MkdirAll(workDir, 0o755); err != nil {
		s.Logger.Warn("separation workdir creation failed", "error", err)
		return "", ""
	}

	_, err := s.Runner.Run(ctx, toolrun.Spec{
		Command: s.PythonBin,
		Args: []string{
			"-m", "demucs.separate",
			"--two-stems", "vocals",
			"-n", s.Model,
			"-o", workDir,
			"--mp3",
			"--mp3-bitrate", "128",
			audioPath,
		},
		Timeout: separateTimeout,
	})
	if err != nil {
		s.Logger.Warn("demucs failed, falling back to mixed track", "error", err)
		_ = s.Fs.RemoveAll(workDir)
		return "", ""
	}

	// demucs writes <workDir>/<model>/<source-basename>/vocals.<ext>.
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	for _, ext := range []string{".mp3", ".wav"} {
		vocals := filepath.Join(workDir, s.Model, base, "vocals"+ext)
		if ok, _ := afero.Exists(s.Fs, vocals); ok {
			return vocals, workDir
		}
	}

	s.Logger.Warn("demucs produced no vocals stem", "workDir", workDir)
	_ = s.Fs.RemoveAll(workDir)
	return "", ""
}
