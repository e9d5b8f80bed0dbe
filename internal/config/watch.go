package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"praxus/pkg/logx"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads the config file whenever it changes and hands every
// successfully parsed config to apply. It blocks until ctx is cancelled.
//
// The parent directory is watched rather than the file so editors that
// replace the file on save are still picked up.
func Watch(ctx context.Context, path string, log logx.Logger, apply func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(path)
	file := filepath.Base(path)
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	reload := func() {
		cfg, err := Load(path)
		if err != nil {
			log.Warn("config reload failed", logx.String("path", path), logx.Err(err))
			return
		}
		log.Info("config reloaded", logx.String("path", path))
		apply(cfg)
	}
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(watchDebounce, reload)
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if strings.EqualFold(filepath.Base(ev.Name), file) && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				debounce()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("config watcher error", logx.Err(err))
		}
	}
}
