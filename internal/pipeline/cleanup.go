package pipeline

import (
	"github.com/spf13/afero"

	"github.com/monimoni12/naos/internal/logging"
)

// cleanupScope collects request-owned files and directories and removes them
// all when released. Release is idempotent and never fails the request;
// deletion problems are only logged.
type cleanupScope struct {
	fs     afero.Fs
	logger *logging.Logger
	files  []string
	dirs   []string
	done   bool
}

func newCleanupScope(fs afero.Fs, logger *logging.Logger) *cleanupScope {
	return &cleanupScope{fs: fs, logger: logger}
}

func (s *cleanupScope) addFile(path string) {
	if path != "" {
		s.files = append(s.files, path)
	}
}

func (s *cleanupScope) addDir(path string) {
	if path != "" {
		s.dirs = append(s.dirs, path)
	}
}

func (s *cleanupScope) release() {
	if s.done {
		return
	}
	s.done = true
	for _, f := range s.files {
		if err := s.fs.Remove(f); err != nil {
			s.logger.Debug("temp file cleanup", "path", f, "error", err)
		}
	}
	for _, d := range s.dirs {
		if err := s.fs.RemoveAll(d); err != nil {
			s.logger.Debug("temp dir cleanup", "path", d, "error", err)
		}
	}
}
