package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"parley/internal/logging"
)

// watchDebounce coalesces editor write bursts into one reload.
const watchDebounce = 250 * time.Millisecond

// WatchPolicy watches the policy file and invokes onChange with each
// successfully reloaded version. A file that fails to parse is ignored and
// the previous policy stays active. Blocks until ctx is cancelled.
func WatchPolicy(ctx context.Context, path string, onChange func(*PolicyFile)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory: editors replace files on save, which drops the
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logging.Get(logging.CategoryConfig).Infof("watching policy file %s", path)

	var timer *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			pf, err := LoadPolicyFile(path)
			if err != nil {
				logging.Get(logging.CategoryConfig).Warnf("policy reload skipped: %v", err)
				continue
			}
			logging.Get(logging.CategoryConfig).Infof("policy reloaded from %s", path)
			onChange(pf)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryConfig).Warnf("policy watcher: %v", err)
		}
	}
}
