package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/logging"
)

// maxUploadBytes is the engine's upload cap; larger files are re-encoded at
// lower fidelity before sending.
const maxUploadBytes = 25 * 1024 * 1024

// CompressFunc re-encodes audio to a smaller file, returning the new path.
type CompressFunc func(ctx context.Context, path string) (string, error)

// Client calls the OpenAI speech-to-text endpoint with segment-level
// timestamps and normalizes its output.
type Client struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
	Fs         afero.Fs
	Compress   CompressFunc
	Logger     *logging.Logger

	// MaxUploadBytes overrides the default cap; used by tests.
	MaxUploadBytes int64
}

type verboseResponse struct {
	Text     string  `json:"text"`
	Duration float64 `json:"duration"`
	Segments []struct {
		ID    int     `json:"id"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe sends the audio to the engine with the given language hint.
// Engine failure is fatal to the request; the caller surfaces it after
// signaling its failure hook.
func (c *Client) Transcribe(ctx context.Context, audioPath, language string) (Result, error) {
	uploadPath := audioPath
	if shrunk, cleanup := c.shrinkIfOversized(ctx, audioPath); shrunk != "" {
		uploadPath = shrunk
		defer cleanup()
	}

	body, contentType, err := c.multipartBody(uploadPath, language)
	if err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/audio/transcriptions", body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", contentType)

	hc := c.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, fmt.Errorf("transcription engine http %d: %s", resp.StatusCode, string(b))
	}

	var vr verboseResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return Result{}, fmt.Errorf("decode engine response: %w", err)
	}
	return normalize(vr), nil
}

// shrinkIfOversized re-encodes the file when it exceeds the upload cap. A
// failed re-encode is logged and the oversized original is sent anyway; the
// engine's rejection then becomes the fatal error.
func (c *Client) shrinkIfOversized(ctx context.Context, audioPath string) (string, func()) {
	limit := c.MaxUploadBytes
	if limit <= 0 {
		limit = maxUploadBytes
	}
	fi, err := c.Fs.Stat(audioPath)
	if err != nil || fi.Size() <= limit {
		return "", nil
	}

	c.Logger.Info("audio exceeds upload cap, compressing", "bytes", fi.Size(), "limit", limit)
	if c.Compress == nil {
		return "", nil
	}
	shrunk, err := c.Compress(ctx, audioPath)
	if err != nil {
		c.Logger.Warn("compression failed, sending original", "error", err)
		return "", nil
	}
	return shrunk, func() { _ = c.Fs.Remove(shrunk) }
}

func (c *Client) multipartBody(audioPath, language string) (*bytes.Buffer, string, error) {
	f, err := c.Fs.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.Model); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("timestamp_granularities[]", "segment"); err != nil {
		return nil, "", err
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return nil, "", err
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &body, mw.FormDataContentType(), nil
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimSuffix(c.BaseURL, "/")
	}
	return "https://api.openai.com/v1"
}

func normalize(vr verboseResponse) Result {
	res := Result{FullText: strings.TrimSpace(vr.Text)}
	for i, s := range vr.Segments {
		res.Segments = append(res.Segments, Segment{
			Index: i,
			Start: round2(s.Start),
			End:   round2(s.End),
			Text:  strings.TrimSpace(s.Text),
		})
	}
	if n := len(res.Segments); n > 0 {
		end := res.Segments[n-1].End
		res.DetectedDuration = &end
	}
	return res
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
