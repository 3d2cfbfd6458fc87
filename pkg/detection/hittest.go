package detection

import (
	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/reconcile"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// HitResult is one intersection of the viewer-space hit-test ray with
// real-world geometry.
type HitResult struct {
	ID   xr.HitID
	Pose xr.Pose
}

func (h *HitResult) refresh(s xr.HitSample) {
	h.Pose = s.Pose
}

// HitTester surfaces hit-test results for a viewer-space source registered
// at session start.
type HitTester struct {
	base
	rec *reconcile.Reconciler[xr.HitID, *HitResult, xr.HitSample]

	onAdd    func(*HitResult)
	onRemove func(*HitResult)

	source xr.HitTestSource
}

// NewHitTester creates a hit tester.
func NewHitTester(supported bool) *HitTester {
	rec, _ := reconcile.New(reconcile.Funcs[xr.HitID, *HitResult, xr.HitSample]{
		New: func(id xr.HitID, s xr.HitSample) (*HitResult, error) {
			h := &HitResult{ID: id}
			h.refresh(s)
			return h, nil
		},
		Refresh: func(h *HitResult, s xr.HitSample) {
			h.refresh(s)
		},
	})

	d := &HitTester{
		base: newBase(xr.FeatureHitTest, supported),
		rec:  rec,
	}
	d.clearAll = rec.Clear

	rec.OnAdd(func(id xr.HitID, h *HitResult) {
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
			fn(h)
		}
	})
	rec.OnRemove(func(id xr.HitID, h *HitResult) {
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
			fn(h)
		}
	})
	return d
}

// OnAdd registers an observer for new hit results.
func (d *HitTester) OnAdd(fn func(*HitResult)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAdd = fn
}

// OnRemove registers an observer for vanished hit results.
func (d *HitTester) OnRemove(fn func(*HitResult)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRemove = fn
}

// BindSource attaches the hit-test source registered at session start.
// Pass nil on session end; the caller cancels the source.
func (d *HitTester) BindSource(source xr.HitTestSource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.source = source
}

// Source returns the currently bound hit-test source.
func (d *HitTester) Source() xr.HitTestSource {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.source
}

// Update reconciles the local index against this frame's hit results.
// A no-op while no source is bound.
func (d *HitTester) Update(frame xr.Frame) error {
	if !d.active(frame.Number()) {
		return nil
	}

	d.mu.RLock()
	source := d.source
	d.mu.RUnlock()
	if source == nil {
		return nil
	}

	samples := frame.HitTestResults(source)
	seen := make([]xr.HitID, 0, len(samples))
	byID := make(map[xr.HitID]xr.HitSample, len(samples))
	for _, s := range samples {
		seen = append(seen, s.ID)
		byID[s.ID] = s
	}
	d.rec.Apply(seen, byID)
	return nil
}

// Results returns the current hit results in stable insertion order.
func (d *HitTester) Results() []*HitResult {
	return d.rec.Entities()
}

// Count returns the number of current hit results.
func (d *HitTester) Count() int {
	return d.rec.Len()
}

// Reset removes remaining entities and drops the bound source.
func (d *HitTester) Reset() {
	d.mu.Lock()
	d.source = nil
	d.mu.Unlock()
	d.rec.Clear()
}

// Compile-time interface satisfaction check.
var _ Subsystem = (*HitTester)(nil)
