package motion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tessro/mocap/internal/core"
	mocaperrors "github.com/tessro/mocap/internal/errors"
)

// Loader resolves a source (file path or http(s) URL) into a session.
type Loader struct {
	opts    Options
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewLoader creates a Loader. A nil fetcher disables remote sources.
func NewLoader(opts Options, fetcher *Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		opts:    opts,
		fetcher: fetcher,
		logger:  logger.With("component", "loader"),
	}
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load reads and parses a recording.
func (l *Loader) Load(ctx context.Context, source string) (*core.Session, error) {
	start := time.Now()

	var data []byte
	var err error
	if IsRemote(source) {
		if l.fetcher == nil {
			return nil, fmt.Errorf("%s: remote recordings are disabled", source)
		}
		data, err = l.fetcher.Fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
		if errors.Is(err, fs.ErrNotExist) {
			err = fmt.Errorf("%s: %w", source, mocaperrors.ErrRecordingNotFound)
		}
	}
	if err != nil {
		l.logger.Warn("load failed", "source", source, "err", err)
		return nil, err
	}

	session, err := Parse(bytes.NewReader(data), DisplayName(source), l.opts)
	if err != nil {
		l.logger.Warn("parse failed", "source", source, "err", err)
		return nil, fmt.Errorf("%s: %w", source, err)
	}
	session.Source = source

	l.logger.Info("loaded recording",
		"source", source,
		"rows", session.Rows,
		"duration", session.Duration(),
		"head_fallback", session.HeadFallback,
		"took", time.Since(start))
	return session, nil
}

// DisplayName returns the base name of a source without its extension.
func DisplayName(source string) string {
	base := filepath.Base(source)
	if IsRemote(source) {
		base = source[strings.LastIndex(source, "/")+1:]
		if i := strings.IndexAny(base, "?#"); i >= 0 {
			base = base[:i]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
