package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type fileStamp struct {
	mod  time.Time
	size int64
}

func (s fileStamp) same(o fileStamp) bool {
	return s.size == o.size && s.mod.Equal(o.mod)
}

func stampOf(path string) (fileStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, err
	}
	return fileStamp{mod: info.ModTime(), size: info.Size()}, nil
}

// Watcher reloads the config file after it changes on disk. The file as it is when
// the watcher is created counts as already loaded.
type Watcher struct {
	path     string
	interval time.Duration
	logger   zerolog.Logger
	stamp    fileStamp
}

func NewWatcher(path string, interval time.Duration, logger zerolog.Logger) (*Watcher, error) {
	if path == "" {
		path = DefaultPath
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	stamp, err := stampOf(path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		path:     path,
		interval: interval,
		logger:   logger.With().Str("component", "config").Str("path", path).Logger(),
		stamp:    stamp,
	}, nil
}

// Check returns the reloaded config when the file changed since the last successful
// reload, or nil when it did not. A file that fails to parse is retried next time.
func (w *Watcher) Check() (*Config, error) {
	stamp, err := stampOf(w.path)
	if err != nil {
		return nil, err
	}
	if stamp.same(w.stamp) {
		return nil, nil
	}
	cfg, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	w.stamp = stamp
	return cfg, nil
}

// Run calls Check every interval until ctx is done and passes each new config to
// onUpdate.
func (w *Watcher) Run(ctx context.Context, onUpdate func(*Config)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cfg, err := w.Check()
			switch {
			case err != nil:
				w.logger.Warn().Err(err).Msg("config reload failed")
			case cfg != nil:
				w.logger.Info().Msg("config reloaded")
				onUpdate(cfg)
			}
		}
	}
}
