package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/monimoni12/naos/internal/pipeline"
)

// Metadata annotates a rendered transcript.
type Metadata struct {
	Source    string
	Language  string
	Model     string
	Generated string
}

// RenderJSON emits the pipeline result verbatim for machine consumers.
func RenderJSON(res pipeline.Result) (string, error) {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}

// RenderMarkdown emits a human-readable transcript with per-segment
// timestamps. Short-circuit outcomes render as a note instead of a body.
func RenderMarkdown(meta Metadata, res pipeline.Result) string {
	var b strings.Builder
	b.WriteString("# Transcript\n\n")
	if meta.Source != "" {
		fmt.Fprintf(&b, "- Source: `%s`\n", meta.Source)
	}
	if meta.Language != "" {
		fmt.Fprintf(&b, "- Language: `%s`\n", meta.Language)
	}
	if meta.Model != "" {
		fmt.Fprintf(&b, "- Model: `%s`\n", meta.Model)
	}
	if meta.Generated != "" {
		fmt.Fprintf(&b, "- Generated: %s\n", meta.Generated)
	}
	if res.Duration != nil {
		fmt.Fprintf(&b, "- Duration: %.2fs\n", *res.Duration)
	}
	if res.VocalEnergy != nil {
		fmt.Fprintf(&b, "- Vocal energy: %.4f\n", *res.VocalEnergy)
	}
	b.WriteString("\n---\n\n")

	switch {
	case res.NoSpeech:
		b.WriteString("_No speech detected in this recording._\n")
	case res.IsHallucination:
		fmt.Fprintf(&b, "_Transcript rejected as engine hallucination: %s_\n", res.HallucinationReason)
	default:
		for _, s := range res.Segments {
			fmt.Fprintf(&b, "[%s-%s] %s\n\n", secToTS(s.Start), secToTS(s.End), s.Text)
		}
	}
	return b.String()
}

func secToTS(sec float64) string {
	d := time.Duration(sec*1000) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
