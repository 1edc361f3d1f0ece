package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// New builds a JSON slog.Logger writing to path. The file is created if
// needed and appended to. When path is "-" or empty the logger writes to
// stdout. The returned closer releases the file handle.
func New(path string, level slog.Leveler) (*slog.Logger, io.Closer, error) {
	w, closer, err := open(path)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h), closer, nil
}

func open(path string) (io.Writer, io.Closer, error) {
	if path == "" || path == "-" {
		return os.Stdout, nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
