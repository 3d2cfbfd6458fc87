package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/persistence"
	"github.com/xrhost-protocol/xrhost-go/pkg/reconcile"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Anchor errors.
var (
	ErrUnavailable    = errors.New("subsystem unavailable")
	ErrNoBoundSession = errors.New("no bound session")
	ErrAnchorNotFound = errors.New("anchor not found")
)

// Anchor is a device-tracked anchor point.
type Anchor struct {
	ID             xr.AnchorID
	Pose           xr.Pose
	Persistent     bool
	PersistentName string
}

func (a *Anchor) refresh(s xr.AnchorSample) {
	a.Pose = s.Pose
}

// AnchorTracker surfaces device-tracked anchors. Creation requests are
// queued and issued against the next frame; the device reports the new
// anchor in its enumeration once tracking is established.
type AnchorTracker struct {
	base
	rec *reconcile.Reconciler[xr.AnchorID, *Anchor, xr.AnchorSample]

	onAdd    func(*Anchor)
	onRemove func(*Anchor)

	pending []xr.Pose
	handle  xr.SessionHandle
	store   *persistence.AnchorStore
}

// NewAnchorTracker creates an anchor tracker.
func NewAnchorTracker(supported bool) *AnchorTracker {
	rec, _ := reconcile.New(reconcile.Funcs[xr.AnchorID, *Anchor, xr.AnchorSample]{
		New: func(id xr.AnchorID, s xr.AnchorSample) (*Anchor, error) {
			a := &Anchor{ID: id}
			a.refresh(s)
			return a, nil
		},
		Refresh: func(a *Anchor, s xr.AnchorSample) {
			a.refresh(s)
		},
	})

	d := &AnchorTracker{
		base: newBase(xr.FeatureAnchors, supported),
		rec:  rec,
	}
	d.clearAll = rec.Clear

	rec.OnAdd(func(id xr.AnchorID, a *Anchor) {
		d.logDetection(log.DetectionEvent{
			Subsystem: string(d.feature),
			Op:        log.DetectionAdd,
			EntityID:  string(id),
			Count:     rec.Len(),
		})
		d.mu.RLock()
		fn := d.onAdd
		d.mu.RUnlock()
		if fn != nil {
			fn(a)
		}
	})
	rec.OnRemove(func(id xr.AnchorID, a *Anchor) {
		d.logDetection(log.DetectionEvent{
			Subsystem: string(d.feature),
			Op:        log.DetectionRemove,
			EntityID:  string(id),
			Count:     rec.Len(),
		})
		d.mu.RLock()
		fn := d.onRemove
		d.mu.RUnlock()
		if fn != nil {
			fn(a)
		}
	})
	return d
}

// OnAdd registers an observer for anchors entering tracking.
func (d *AnchorTracker) OnAdd(fn func(*Anchor)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAdd = fn
}

// OnRemove registers an observer for anchors leaving tracking.
func (d *AnchorTracker) OnRemove(fn func(*Anchor)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRemove = fn
}

// SetStore attaches the persistent-anchor store.
func (d *AnchorTracker) SetStore(store *persistence.AnchorStore) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store = store
}

// BindSession attaches the granted session handle for anchor persistence
// calls. Pass nil on session end.
func (d *AnchorTracker) BindSession(handle xr.SessionHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handle = handle
	if handle == nil {
		d.pending = nil
	}
}

// CreateAnchor queues an anchor creation at the given pose. The request is
// issued against the next frame; the anchor surfaces via OnAdd once the
// device establishes tracking.
func (d *AnchorTracker) CreateAnchor(pose xr.Pose) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.supported || !d.available {
		return ErrUnavailable
	}
	d.pending = append(d.pending, pose)
	return nil
}

// Update drains queued creation requests and reconciles the local index
// against this frame's anchor enumeration.
func (d *AnchorTracker) Update(frame xr.Frame) error {
	if !d.active(frame.Number()) {
		return nil
	}

	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, pose := range pending {
		if _, err := frame.CreateAnchor(pose); err != nil {
			d.reportError(fmt.Errorf("create anchor: %w", err), "anchor creation")
		}
	}

	samples := frame.TrackedAnchors()
	seen := make([]xr.AnchorID, 0, len(samples))
	byID := make(map[xr.AnchorID]xr.AnchorSample, len(samples))
	for _, s := range samples {
		seen = append(seen, s.ID)
		byID[s.ID] = s
	}
	d.rec.Apply(seen, byID)
	return nil
}

// Persist asks the device to persist a tracked anchor across sessions and
// records its name in the store. Returns the persistent name.
func (d *AnchorTracker) Persist(ctx context.Context, id xr.AnchorID) (string, error) {
	d.mu.RLock()
	handle := d.handle
	store := d.store
	d.mu.RUnlock()

	if handle == nil {
		return "", ErrNoBoundSession
	}

	anchor, ok := d.rec.Get(id)
	if !ok {
		return "", ErrAnchorNotFound
	}

	name, err := handle.PersistAnchor(ctx, id)
	if err != nil {
		return "", fmt.Errorf("persist anchor: %w", err)
	}

	anchor.Persistent = true
	anchor.PersistentName = name

	if store != nil {
		if err := store.Save(persistence.PersistedAnchor{
			Name:    name,
			Pose:    anchor.Pose,
			SavedAt: time.Now(),
		}); err != nil {
			d.reportError(fmt.Errorf("save persisted anchor: %w", err), "anchor persistence")
		}
	}
	return name, nil
}

// RestorePersisted asks the device to restore every anchor recorded in the
// store into the current session. Individual restore failures are reported
// through the error channel without aborting the rest.
func (d *AnchorTracker) RestorePersisted(ctx context.Context) error {
	d.mu.RLock()
	handle := d.handle
	store := d.store
	d.mu.RUnlock()

	if handle == nil {
		return ErrNoBoundSession
	}
	if store == nil {
		return nil
	}

	anchors, err := store.Load()
	if err != nil {
		return fmt.Errorf("load persisted anchors: %w", err)
	}

	for _, a := range anchors {
		if _, err := handle.RestorePersistentAnchor(ctx, a.Name); err != nil {
			d.reportError(fmt.Errorf("restore anchor %q: %w", a.Name, err), "anchor restore")
		}
	}
	return nil
}

// Forget removes a persisted anchor name from the store.
func (d *AnchorTracker) Forget(name string) error {
	d.mu.RLock()
	store := d.store
	d.mu.RUnlock()

	if store == nil {
		return persistence.ErrAnchorNotFound
	}
	return store.Remove(name)
}

// Anchors returns the currently tracked anchors in stable insertion order.
func (d *AnchorTracker) Anchors() []*Anchor {
	return d.rec.Entities()
}

// Count returns the number of tracked anchors.
func (d *AnchorTracker) Count() int {
	return d.rec.Len()
}

// Reset removes remaining entities and drops queued creations.
func (d *AnchorTracker) Reset() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
	d.rec.Clear()
}

// Compile-time interface satisfaction check.
var _ Subsystem = (*AnchorTracker)(nil)
