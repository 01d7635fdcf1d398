package config

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"capgate/internal/domain"
)

const defaultReloadDebounce = 200 * time.Millisecond

// ApplyFunc receives every successfully reloaded profile.
type ApplyFunc func(domain.Profile) error

// Watcher reloads the config file on change and hands the result to apply.
type Watcher struct {
	logger   *zap.Logger
	loader   *Loader
	name     domain.ProfileName
	path     string
	apply    ApplyFunc
	debounce time.Duration
}

func NewWatcher(loader *Loader, name domain.ProfileName, path string, apply ApplyFunc, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loader == nil {
		loader = NewLoader(logger)
	}
	return &Watcher{
		logger:   logger.Named("config_watcher"),
		loader:   loader,
		name:     name,
		path:     path,
		apply:    apply,
		debounce: defaultReloadDebounce,
	}
}

// Reload loads the file once and applies it.
func (w *Watcher) Reload(ctx context.Context) error {
	profile, err := w.loader.Load(ctx, w.name, w.path)
	if err != nil {
		return err
	}
	if w.apply == nil {
		return nil
	}
	return w.apply(profile)
}

// Run watches the directory holding the config file until ctx ends. Bursts
// of events collapse into one reload.
func (w *Watcher) Run(ctx context.Context) error {
	if w.path == "" {
		return errors.New("config watcher needs a config path")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				w.logger.Warn("config watcher error", zap.Error(err))
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !shouldReloadForPath(event.Name, w.path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			if err := w.Reload(ctx); err != nil {
				w.logger.Warn("config reload failed", zap.String("path", w.path), zap.Error(err))
				continue
			}
			w.logger.Info("config reloaded", zap.String("path", w.path))
		}
	}
}

func shouldReloadForPath(path string, configPath string) bool {
	if path == "" || configPath == "" {
		return false
	}
	return filepath.Clean(path) == filepath.Clean(configPath)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
