package reconcile

import (
	"errors"
	"sync"
)

// Reconciler errors.
var (
	ErrNilConstructor = errors.New("entity constructor is required")
)

// Funcs supplies the per-entity lifecycle hooks for a Reconciler.
// K is the device-assigned identity, E the local entity type, and S the
// per-identity snapshot the device reported this frame.
type Funcs[K comparable, E any, S any] struct {
	// New constructs a local entity for a previously-unseen identity and
	// populates it from the frame snapshot. Required. An error skips the
	// identity for this frame without aborting the rest of the snapshot.
	New func(id K, sample S) (E, error)

	// Refresh updates an existing entity in place from the frame
	// snapshot. Optional.
	Refresh func(entity E, sample S)

	// Teardown releases entity resources before removal. Optional.
	Teardown func(entity E)
}

// Reconciler maintains a local index of device-tracked entities and diffs it
// against per-frame snapshots. The index map and the ordered list always
// contain exactly the same set of entities.
type Reconciler[K comparable, E any, S any] struct {
	mu sync.RWMutex

	funcs Funcs[K, E, S]

	index map[K]E
	order []K

	onAdd    func(K, E)
	onRemove func(K, E)
	onError  func(K, error)
}

// New creates a Reconciler with the given lifecycle hooks.
func New[K comparable, E any, S any](funcs Funcs[K, E, S]) (*Reconciler[K, E, S], error) {
	if funcs.New == nil {
		return nil, ErrNilConstructor
	}
	return &Reconciler[K, E, S]{
		funcs: funcs,
		index: make(map[K]E),
	}, nil
}

// OnAdd sets the observer fired after an entity is inserted.
func (r *Reconciler[K, E, S]) OnAdd(fn func(K, E)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onAdd = fn
}

// OnRemove sets the observer fired after an entity is removed and torn down.
func (r *Reconciler[K, E, S]) OnRemove(fn func(K, E)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = fn
}

// OnError sets the observer for constructor failures.
func (r *Reconciler[K, E, S]) OnError(fn func(K, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onError = fn
}

// Apply reconciles the index against one frame's snapshot. The snapshot maps
// every live identity to its per-frame sample; identities absent from it are
// removed. seen preserves the device's enumeration order for insertions.
//
// All removals (teardown plus remove event) complete before any addition.
// Applying an unchanged snapshot twice produces no events on the second call.
func (r *Reconciler[K, E, S]) Apply(seen []K, samples map[K]S) {
	r.mu.Lock()
	onAdd := r.onAdd
	onRemove := r.onRemove
	onError := r.onError

	// Pass 1: drop entities the device no longer reports.
	type removal struct {
		id     K
		entity E
	}
	var removed []removal
	kept := r.order[:0]
	for _, id := range r.order {
		if _, ok := samples[id]; ok {
			kept = append(kept, id)
			continue
		}
		entity := r.index[id]
		delete(r.index, id)
		if r.funcs.Teardown != nil {
			r.funcs.Teardown(entity)
		}
		removed = append(removed, removal{id: id, entity: entity})
	}
	r.order = kept
	r.mu.Unlock()

	// Remove events fire before any same-frame add so a reused identity
	// is observed as remove-then-add.
	if onRemove != nil {
		for _, rm := range removed {
			onRemove(rm.id, rm.entity)
		}
	}

	// Pass 2: refresh survivors, construct newcomers.
	for _, id := range seen {
		sample, ok := samples[id]
		if !ok {
			continue
		}

		r.mu.Lock()
		if entity, exists := r.index[id]; exists {
			if r.funcs.Refresh != nil {
				r.funcs.Refresh(entity, sample)
			}
			r.mu.Unlock()
			continue
		}
		r.mu.Unlock()

		entity, err := r.funcs.New(id, sample)
		if err != nil {
			if onError != nil {
				onError(id, err)
			}
			continue
		}

		r.mu.Lock()
		r.index[id] = entity
		r.order = append(r.order, id)
		r.mu.Unlock()

		if onAdd != nil {
			onAdd(id, entity)
		}
	}
}

// Clear force-removes every entity in list order, firing a remove event for
// each. Used at session end.
func (r *Reconciler[K, E, S]) Clear() {
	r.mu.Lock()
	onRemove := r.onRemove
	order := r.order
	entities := make([]E, 0, len(order))
	for _, id := range order {
		entity := r.index[id]
		if r.funcs.Teardown != nil {
			r.funcs.Teardown(entity)
		}
		entities = append(entities, entity)
	}
	r.index = make(map[K]E)
	r.order = nil
	r.mu.Unlock()

	if onRemove != nil {
		for i, id := range order {
			onRemove(id, entities[i])
		}
	}
}

// Get returns the entity for a device identity.
func (r *Reconciler[K, E, S]) Get(id K) (E, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entity, ok := r.index[id]
	return entity, ok
}

// Entities returns the current entities in stable insertion order.
func (r *Reconciler[K, E, S]) Entities() []E {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]E, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.index[id])
	}
	return out
}

// IDs returns the current identities in stable insertion order.
func (r *Reconciler[K, E, S]) IDs() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]K(nil), r.order...)
}

// Len returns the number of tracked entities.
func (r *Reconciler[K, E, S]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
