// Package monitor watches a directory for changes using fsnotify.
package monitor

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"

	"medrx/internal/rx"
)

// FSNotifyMonitor is the fsnotify implementation of rx.DirectoryMonitor.
type FSNotifyMonitor struct {
	logger rx.Logger
}

// NewFSNotifyMonitor creates a monitor. Errors reported by the OS watch are
// sent to logger.
func NewFSNotifyMonitor(logger rx.Logger) *FSNotifyMonitor {
	return &FSNotifyMonitor{logger: logger}
}

// Watch starts watching dir. Every create, write, remove, rename or chmod in
// dir produces one notification; notifications that arrive while one is still
// pending are merged into it.
func (m *FSNotifyMonitor) Watch(dir string) (rx.DirectoryWatch, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", rx.ErrDirectoryAccess, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: not a directory: %s", rx.ErrDirectoryAccess, dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", rx.ErrWatchSetup, err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("%w: %s: %v", rx.ErrDirectoryAccess, dir, err)
	}

	w := &fsWatch{
		watcher: watcher,
		events:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		logger:  m.logger,
		dir:     dir,
	}
	go w.run()
	return w, nil
}

type fsWatch struct {
	watcher *fsnotify.Watcher
	events  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	logger  rx.Logger
	dir     string
}

func (w *fsWatch) Events() <-chan struct{} {
	return w.events
}

// Close stops the watch and waits for its goroutine to exit.
func (w *fsWatch) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		err = w.watcher.Close()
		<-w.done
	})
	return err
}

func (w *fsWatch) run() {
	defer close(w.done)
	defer close(w.events)

	for {
		select {
		case <-w.stop:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.logger.Debug("directory changed", "dir", w.dir, "file", ev.Name, "op", ev.Op.String())
			select {
			case w.events <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				// Events were lost; a notification makes the consumer re-list.
				select {
				case w.events <- struct{}{}:
				default:
				}
				continue
			}
			w.logger.Error("directory watch error", "dir", w.dir, "error", err)
		}
	}
}

// Compile-time check that FSNotifyMonitor implements rx.DirectoryMonitor
var _ rx.DirectoryMonitor = (*FSNotifyMonitor)(nil)
