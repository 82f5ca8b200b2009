package repository

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"medrx/internal/codec"
	"medrx/internal/monitor"
	"medrx/internal/rx"
)

// MemoryRepository is an in-memory implementation of the rx.Repository interface.
// Medications are kept in their encoded form, so every load decodes fresh
// values just like the filesystem repository. Useful for testing.
// This implementation is safe for concurrent use.
type MemoryRepository struct {
	mu      sync.RWMutex
	bodies  map[uuid.UUID][]byte
	idgen   rx.IDGenerator
	monitor *monitor.ManualMonitor
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository(idgen rx.IDGenerator) *MemoryRepository {
	return &MemoryRepository{
		bodies:  make(map[uuid.UUID][]byte),
		idgen:   idgen,
		monitor: monitor.NewManualMonitor(),
	}
}

// Load decodes every stored medication, ordered by identity.
func (r *MemoryRepository) Load(_ context.Context) ([]rx.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uuid.UUID, 0, len(r.bodies))
	for id := range r.bodies {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return strings.Compare(a.String(), b.String()) })

	meds := make([]rx.Medication, 0, len(ids))
	for _, id := range ids {
		m, err := codec.Unmarshal(id, r.bodies[id])
		if err != nil {
			continue
		}
		meds = append(meds, m)
	}
	return meds, nil
}

// Save stores m, assigning an identity if it has none.
func (r *MemoryRepository) Save(_ context.Context, m rx.Medication) (rx.Medication, error) {
	if strings.TrimSpace(m.Name) == "" {
		panic("repository: cannot save a medication without a name")
	}
	if !m.HasID() {
		m.ID = r.idgen.New()
	}

	data, err := codec.Marshal(m)
	if err != nil {
		return rx.Medication{}, &rx.SaveError{Name: m.Name, Err: err}
	}

	r.mu.Lock()
	r.bodies[m.ID] = data
	r.mu.Unlock()

	r.monitor.Notify()
	m.Persisted = true
	return m, nil
}

// Delete removes id. Deleting an absent medication succeeds.
func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	_, ok := r.bodies[id]
	delete(r.bodies, id)
	r.mu.Unlock()

	if ok {
		r.monitor.Notify()
	}
	return nil
}

// Subscribe starts a feed that republishes after every Save and Delete.
func (r *MemoryRepository) Subscribe(ctx context.Context) (*rx.Subscription, error) {
	watch, err := r.monitor.Watch("memory")
	if err != nil {
		return nil, err
	}
	return rx.NewSubscription(ctx, watch, r.Load), nil
}

// Compile-time check that MemoryRepository implements rx.Repository interface
var _ rx.Repository = (*MemoryRepository)(nil)
