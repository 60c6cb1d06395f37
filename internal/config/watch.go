package config

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTurfsPath      = "configs/turfs.yaml"
	defaultReloadInterval = 30 * time.Second
)

// turfWatcher polls the catalog file and hands every valid revision to onUpdate.
type turfWatcher struct {
	logger   *zerolog.Logger
	path     string
	onUpdate func(*TurfsConfig)

	modTime     time.Time
	statFailing bool
}

// WatchTurfs loads the turf catalog at path, passes it to onUpdate and then
// reloads it in the background whenever its modification time advances.
// Only the initial load can fail; later errors are logged and the previous
// catalog stays in effect.
func WatchTurfs(
	ctx context.Context,
	logger *zerolog.Logger,
	path string,
	interval time.Duration,
	onUpdate func(*TurfsConfig),
) error {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if path == "" {
		path = defaultTurfsPath
	}
	if interval <= 0 {
		interval = defaultReloadInterval
	}

	w := &turfWatcher{logger: logger, path: path, onUpdate: onUpdate}
	if err := w.load(); err != nil {
		return err
	}

	go w.run(ctx, interval)
	return nil
}

func (w *turfWatcher) load() error {
	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	cfg, err := LoadTurfsConfig(w.path)
	if err != nil {
		return err
	}
	w.modTime = info.ModTime()
	w.publish(cfg)
	return nil
}

func (w *turfWatcher) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll()
		}
	}
}

// poll reports whether a new catalog revision was published.
func (w *turfWatcher) poll() bool {
	l := w.logger.With().Str("path", w.path).Logger()

	info, err := os.Stat(w.path)
	if err != nil {
		// Editors replace files by rename, so a missing file is usually brief.
		if !w.statFailing {
			l.Warn().Err(err).Msg("turf catalog unavailable, keeping current catalog")
		}
		w.statFailing = true
		return false
	}
	if w.statFailing {
		l.Info().Msg("turf catalog available again")
		w.statFailing = false
	}
	if !info.ModTime().After(w.modTime) {
		return false
	}

	cfg, err := LoadTurfsConfig(w.path)
	if err != nil {
		l.Error().Err(err).Msg("turf catalog reload failed")
		return false
	}
	w.modTime = info.ModTime()
	l.Info().Int("turfs", len(cfg.Turfs)).Msg("turf catalog reloaded")
	w.publish(cfg)
	return true
}

func (w *turfWatcher) publish(cfg *TurfsConfig) {
	if w.onUpdate != nil {
		w.onUpdate(cfg)
	}
}
