package repo

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig watches config.json for writes and invokes callback with the
// freshly reloaded Config on each change. It is additive convenience, not
// required by any invariant: a long-running `watch` loop uses it to pick up
// an updated author_id/author_role without a restart (its watched tables
// stay fixed). The returned stop function closes the underlying watcher. A
// config.json that fails to load is skipped without calling callback, and
// values on fsnotify.Errors are ignored, so a bad reload does not kill the
// watch loop.
func (r *Repository) WatchConfig(callback func(Config)) (stop func() error, err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(r.root, dirName, configName)
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != configPath {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := loadConfig(configPath)
				if err != nil {
					continue
				}
				callback(cfg)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return watcher.Close, nil
}
