package media

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/monimoni12/naos/internal/logging"
	"github.com/monimoni12/naos/internal/toolrun"
)

const probeTimeout = 30 * time.Second

// Prober reports the container duration of a media file via ffprobe.
type Prober struct {
	Runner toolrun.Runner
	Logger *logging.Logger
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the duration in seconds rounded to two decimals, or nil when
// ffprobe fails, times out, or reports nothing usable. It is used for
// reporting only and never fails the request.
func (p *Prober) Probe(ctx context.Context, path string) *float64 {
	res, err := p.Runner.Run(ctx, toolrun.Spec{
		Command: "ffprobe",
		Args: []string{
			"-v", "quiet",
			"-print_format", "json",
			"-show_format", path,
		},
		Timeout: probeTimeout,
	})
	if err != nil {
		p.Logger.Debug("ffprobe failed", "path", path, "error", err)
		return nil
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		p.Logger.Debug("ffprobe output unparseable", "path", path, "error", err)
		return nil
	}
	secs, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil || secs <= 0 {
		return nil
	}
	rounded := math.Round(secs*100) / 100
	return &rounded
}
