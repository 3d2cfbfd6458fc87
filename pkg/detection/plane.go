package detection

import (
	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/reconcile"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Plane is a detected real-world plane. It is owned exclusively by its
// PlaneDetector and mutated in place every frame the device still reports it.
type Plane struct {
	ID          xr.PlaneID
	Pose        xr.Pose
	Polygon     []xr.Vector3
	Orientation xr.PlaneOrientation
	LastChanged uint64
}

func (p *Plane) refresh(s xr.PlaneSample) {
	p.Pose = s.Pose
	p.Polygon = append(p.Polygon[:0], s.Polygon...)
	p.Orientation = s.Orientation
	p.LastChanged = s.LastChanged
}

// PlaneDetector surfaces planes detected by the device.
type PlaneDetector struct {
	base
	rec *reconcile.Reconciler[xr.PlaneID, *Plane, xr.PlaneSample]

	onAdd    func(*Plane)
	onRemove func(*Plane)
}

// NewPlaneDetector creates a plane detector. supported reflects whether the
// host exposes plane detection at all.
func NewPlaneDetector(supported bool) *PlaneDetector {
	rec, _ := reconcile.New(reconcile.Funcs[xr.PlaneID, *Plane, xr.PlaneSample]{
		New: func(id xr.PlaneID, s xr.PlaneSample) (*Plane, error) {
			p := &Plane{ID: id}
			p.refresh(s)
			return p, nil
		},
		Refresh: func(p *Plane, s xr.PlaneSample) {
			p.refresh(s)
		},
	})

	d := &PlaneDetector{
		base: newBase(xr.FeaturePlaneDetection, supported),
		rec:  rec,
	}
	d.clearAll = rec.Clear

	rec.OnAdd(func(id xr.PlaneID, p *Plane) {
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
			fn(p)
		}
	})
	rec.OnRemove(func(id xr.PlaneID, p *Plane) {
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
			fn(p)
		}
	})
	return d
}

// OnAdd registers an observer for newly detected planes. It fires after the
// plane is inserted into the index.
func (d *PlaneDetector) OnAdd(fn func(*Plane)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAdd = fn
}

// OnRemove registers an observer for removed planes. It fires after the
// plane left the index, before any same-frame add.
func (d *PlaneDetector) OnRemove(fn func(*Plane)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRemove = fn
}

// Update reconciles the local index against this frame's plane enumeration.
func (d *PlaneDetector) Update(frame xr.Frame) error {
	if !d.active(frame.Number()) {
		return nil
	}

	samples := frame.DetectedPlanes()
	seen := make([]xr.PlaneID, 0, len(samples))
	byID := make(map[xr.PlaneID]xr.PlaneSample, len(samples))
	for _, s := range samples {
		seen = append(seen, s.ID)
		byID[s.ID] = s
	}
	d.rec.Apply(seen, byID)
	return nil
}

// Planes returns the currently tracked planes in stable insertion order.
func (d *PlaneDetector) Planes() []*Plane {
	return d.rec.Entities()
}

// Count returns the number of tracked planes.
func (d *PlaneDetector) Count() int {
	return d.rec.Len()
}

// Reset removes any remaining entities (firing their remove events).
func (d *PlaneDetector) Reset() {
	d.rec.Clear()
}

// Compile-time interface satisfaction check.
var _ Subsystem = (*PlaneDetector)(nil)
