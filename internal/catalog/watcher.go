package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the catalog cache when the marketplace directory
// changes. It watches the root dir and its immediate skill subdirectories,
// debouncing bursts so a multi-file publish triggers one reload.
func (c *Catalog) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}

	addDir := func(dir string) {
		if err := fsw.Add(dir); err != nil {
			if os.IsNotExist(err) {
				return
			}
			c.log.Warn("catalog watcher: add failed", "dir", dir, "error", err)
		}
	}

	addDir(c.dir)
	if entries, err := os.ReadDir(c.dir); err == nil {
		for _, ent := range entries {
			if ent.IsDir() {
				addDir(filepath.Join(c.dir, ent.Name()))
			}
		}
	}

	go func() {
		defer func() { _ = fsw.Close() }()

		var pending bool
		var timer *time.Timer
		var timerC <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}

				// Watch new skill directories as they appear.
				if ev.Op&fsnotify.Create != 0 {
					if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
						_ = fsw.Add(ev.Name)
					}
				}

				base := filepath.Base(ev.Name)
				if base != "catalog.json" && base != "README.md" && base != "SKILL.md" {
					if fi, err := os.Stat(ev.Name); err != nil || !fi.IsDir() {
						continue
					}
				}

				pending = true
				if timer == nil {
					timer = time.NewTimer(150 * time.Millisecond)
					timerC = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(150 * time.Millisecond)
					timerC = timer.C
				}

			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				c.log.Warn("catalog watcher error", "error", err)
			case <-timerC:
				timerC = nil
				if pending {
					pending = false
					c.log.Debug("marketplace changed, dropping catalog cache")
					c.Invalidate()
				}
			}
		}
	}()

	return nil
}
