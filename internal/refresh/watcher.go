package refresh

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher mirrors the effect of opening /.refresh whenever schemas.xml
// or logs.xml changes on disk in any of the watched search directories.
// Errors the watcher reports while running are logged and otherwise
// ignored; a directory that cannot be watched is skipped without a log
// line. The manual /.refresh path keeps working regardless.
type Watcher struct {
	fsw  *fsnotify.Watcher
	log  *zap.Logger
	r    *Refresher
	stop chan struct{}
}

// WatchConfigDirs starts watching dirs for changes to schemas.xml or
// logs.xml, debounced by debounce. Call Close to stop.
func WatchConfigDirs(r *Refresher, dirs []string, log *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, d := range dirs {
		// Best-effort: a search-path entry that doesn't exist yet (the
		// config might live in only one of the three locations) simply
		// isn't watched.
		_ = fsw.Add(d)
	}

	w := &Watcher{fsw: fsw, log: log, r: r, stop: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	var timer *time.Timer
	reset := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			return
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(debounce)
	}

	var timerC <-chan time.Time
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			base := filepath.Base(ev.Name)
			if base != "schemas.xml" && base != "logs.xml" {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reset()
			timerC = timer.C
		case <-timerC:
			w.log.Info("config change detected, refreshing")
			w.r.Refresh()
			timerC = nil
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config watcher error", zap.Error(err))
		case <-w.stop:
			return
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	return w.fsw.Close()
}
