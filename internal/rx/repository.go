package rx

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Repository persists medications and publishes the current set.
type Repository interface {
	// Load returns every readable medication. Unreadable entries are skipped;
	// only a failure to access the store itself is returned.
	Load(ctx context.Context) ([]Medication, error)

	// Save writes m, assigning an identity if it has none, and returns the
	// stored value marked persisted. m.Name must be non-empty.
	Save(ctx context.Context, m Medication) (Medication, error)

	// Delete removes the medication with the given identity. Deleting an
	// absent medication succeeds.
	Delete(ctx context.Context, id uuid.UUID) error

	// Subscribe delivers a snapshot immediately and again after every change.
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Snapshot is the full set of medications at one point in time, or the error
// that prevented loading it.
type Snapshot struct {
	Medications []Medication
	Err         error
}

// LoadFunc produces one snapshot's worth of medications.
type LoadFunc func(ctx context.Context) ([]Medication, error)

// Subscription is a continuous feed of snapshots driven by a DirectoryWatch.
// Loads run one at a time on the subscription's own goroutine; snapshots are
// delivered to whoever reads Updates.
type Subscription struct {
	updates chan Snapshot
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewSubscription starts a feed that loads once immediately and once per
// event from watch. The subscription owns watch and closes it when it stops.
func NewSubscription(ctx context.Context, watch DirectoryWatch, load LoadFunc) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		updates: make(chan Snapshot),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run(ctx, watch, load)
	return s
}

// Updates returns the snapshot channel. It is closed when the subscription stops.
func (s *Subscription) Updates() <-chan Snapshot {
	return s.updates
}

// Close stops future loads and releases the watch. It waits for an in-flight
// load to finish; that load's result is discarded. Close is idempotent.
func (s *Subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}

// Done is closed once the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run(ctx context.Context, watch DirectoryWatch, load LoadFunc) {
	defer close(s.done)
	defer close(s.updates)
	defer watch.Close()

	if !s.publish(ctx, load) {
		return
	}

	events := watch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			if !s.publish(ctx, load) {
				return
			}
		}
	}
}

// publish performs one load and delivers it. It returns false once the
// subscription has been cancelled.
func (s *Subscription) publish(ctx context.Context, load LoadFunc) bool {
	meds, err := load(ctx)
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.updates <- Snapshot{Medications: meds, Err: err}:
		return true
	case <-ctx.Done():
		return false
	}
}
