package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/logging"
)

const downloadTimeout = 300 * time.Second

// Fetcher resolves a media source (remote URL or local path) to a local file.
type Fetcher struct {
	Fs     afero.Fs
	Client *http.Client
	Logger *logging.Logger
	TmpDir string
}

// Fetch returns a local path for the source plus whether the pipeline owns
// the file. Local paths are used in place and never deleted; downloads are
// request-owned and must be removed by the caller.
func (f *Fetcher) Fetch(ctx context.Context, source string) (string, bool, error) {
	if isRemote(source) {
		p, err := f.download(ctx, source)
		if err != nil {
			return "", false, err
		}
		return p, true, nil
	}

	ok, err := afero.Exists(f.Fs, source)
	if err != nil || !ok {
		return "", false, fmt.Errorf("source not found: %s", source)
	}
	return source, false, nil
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("download %s: http %d", rawURL, resp.StatusCode)
	}

	dst := filepath.Join(f.TmpDir, "naos_media_"+uuid.New().String()+suffixFromURL(rawURL))
	out, err := f.Fs.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create download target: %w", err)
	}
	n, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err != nil {
		_ = f.Fs.Remove(dst)
		return "", fmt.Errorf("download %s: %w", rawURL, err)
	}
	if closeErr != nil {
		_ = f.Fs.Remove(dst)
		return "", fmt.Errorf("finalize download: %w", closeErr)
	}

	f.Logger.Debug("downloaded media", "url", rawURL, "path", dst, "bytes", n)
	return dst, nil
}

// suffixFromURL keeps the source extension so ffmpeg sees the right container
// hint. Query strings are ignored; unknown sources default to .mp4.
func suffixFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp4"
	}
	if ext := path.Ext(u.Path); ext != "" {
		return strings.ToLower(ext)
	}
	return ".mp4"
}
