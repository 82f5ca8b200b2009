package monitor

import (
	"sync"

	"medrx/internal/rx"
)

// ManualMonitor is an in-process rx.DirectoryMonitor whose notifications are
// raised by calling Notify. The memory repository uses it to signal its own
// changes, and tests use it to drive feeds deterministically.
// This implementation is safe for concurrent use.
type ManualMonitor struct {
	mu       sync.Mutex
	watches  map[*manualWatch]struct{}
	watchErr error
}

// NewManualMonitor creates a monitor with no active watches.
func NewManualMonitor() *ManualMonitor {
	return &ManualMonitor{watches: make(map[*manualWatch]struct{})}
}

// FailWith makes subsequent Watch calls return err. A nil err clears the failure.
func (m *ManualMonitor) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.watchErr = err
}

// Watch registers a new watch. dir is not inspected.
func (m *ManualMonitor) Watch(dir string) (rx.DirectoryWatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.watchErr != nil {
		return nil, m.watchErr
	}
	w := &manualWatch{owner: m, events: make(chan struct{}, 1)}
	m.watches[w] = struct{}{}
	return w, nil
}

// Notify delivers a notification to every active watch. A notification that
// is still pending absorbs the new one.
func (m *ManualMonitor) Notify() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for w := range m.watches {
		select {
		case w.events <- struct{}{}:
		default:
		}
	}
}

// Active returns the number of open watches.
func (m *ManualMonitor) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watches)
}

type manualWatch struct {
	owner  *ManualMonitor
	events chan struct{}
}

func (w *manualWatch) Events() <-chan struct{} {
	return w.events
}

func (w *manualWatch) Close() error {
	w.owner.mu.Lock()
	defer w.owner.mu.Unlock()

	if _, ok := w.owner.watches[w]; ok {
		delete(w.owner.watches, w)
		close(w.events)
	}
	return nil
}

// Compile-time check that ManualMonitor implements rx.DirectoryMonitor
var _ rx.DirectoryMonitor = (*ManualMonitor)(nil)
