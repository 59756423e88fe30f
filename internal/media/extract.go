package media

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/toolrun"
)

const (
	extractTimeout  = 120 * time.Second
	compressTimeout = 60 * time.Second
)

// Extractor transcodes input media to compressed audio via ffmpeg.
type Extractor struct {
	Fs     afero.Fs
	Runner toolrun.Runner
	Logger *logging.Logger
	TmpDir string
}

// Extract demuxes the media at path into a 128kbps 44.1kHz stereo MP3 and
// returns its location. The output name is request-unique. Failure here is
// fatal to the request: without decoded audio nothing downstream can run.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	out := filepath.Join(e.TmpDir, "naos_audio_"+uuid.New().String()+".mp3")

	_, err := e.Runner.Run(ctx, toolrun.Spec{
		Command: "ffmpeg",
		Args: []string{
			"-i", path,
			"-vn", "-acodec", "libmp3lame",
			"-ab", "128k", "-ar", "44100", "-ac", "2",
			"-y", out,
		},
		Timeout: extractTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("ffmpeg audio extraction: %w", err)
	}
	if ok, _ := afero.Exists(e.Fs, out); !ok {
		return "", fmt.Errorf("ffmpeg produced no output: %s", out)
	}
	return out, nil
}

// Compress re-encodes audio to a 64kbps 16kHz mono MP3 for engines with
// upload size caps. Returns the new path, or an error when the re-encode
// fails; callers then fall back to the original file.
func (e *Extractor) Compress(ctx context.Context, path string) (string, error) {
	out := filepath.Join(e.TmpDir, "naos_compressed_"+uuid.New().String()+".mp3")

	_, err := e.Runner.Run(ctx, toolrun.Spec{
		Command: "ffmpeg",
		Args: []string{
			"-i", path,
			"-acodec", "libmp3lame",
			"-ab", "64k", "-ar", "16000", "-ac", "1",
			"-y", out,
		},
		Timeout: compressTimeout,
	})
	if err != nil {
		return "", fmt.Errorf("ffmpeg audio compression: %w", err)
	}
	if ok, _ := afero.Exists(e.Fs, out); !ok {
		return "", fmt.Errorf("ffmpeg produced no output: %s", out)
	}
	e.Logger.Debug("compressed audio for upload", "src", path, "dst", out)
	return out, nil
}
