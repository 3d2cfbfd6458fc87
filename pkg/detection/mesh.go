package detection

import (
	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/reconcile"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Mesh is a detected real-world mesh with its vertex/index buffers.
type Mesh struct {
	ID          xr.MeshID
	Pose        xr.Pose
	Vertices    []xr.Vector3
	Indices     []uint32
	Label       string
	LastChanged uint64
}

func (m *Mesh) refresh(s xr.MeshSample) {
	m.Pose = s.Pose
	m.Vertices = append(m.Vertices[:0], s.Vertices...)
	m.Indices = append(m.Indices[:0], s.Indices...)
	m.Label = s.Label
	m.LastChanged = s.LastChanged
}

// MeshDetector surfaces meshes detected by the device.
type MeshDetector struct {
	base
	rec *reconcile.Reconciler[xr.MeshID, *Mesh, xr.MeshSample]

	onAdd    func(*Mesh)
	onRemove func(*Mesh)
}

// NewMeshDetector creates a mesh detector.
func NewMeshDetector(supported bool) *MeshDetector {
	rec, _ := reconcile.New(reconcile.Funcs[xr.MeshID, *Mesh, xr.MeshSample]{
		New: func(id xr.MeshID, s xr.MeshSample) (*Mesh, error) {
			m := &Mesh{ID: id}
			m.refresh(s)
			return m, nil
		},
		Refresh: func(m *Mesh, s xr.MeshSample) {
			m.refresh(s)
		},
	})

	d := &MeshDetector{
		base: newBase(xr.FeatureMeshDetection, supported),
		rec:  rec,
	}
	d.clearAll = rec.Clear

	rec.OnAdd(func(id xr.MeshID, m *Mesh) {
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
			fn(m)
		}
	})
	rec.OnRemove(func(id xr.MeshID, m *Mesh) {
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
			fn(m)
		}
	})
	return d
}

// OnAdd registers an observer for newly detected meshes.
func (d *MeshDetector) OnAdd(fn func(*Mesh)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAdd = fn
}

// OnRemove registers an observer for removed meshes.
func (d *MeshDetector) OnRemove(fn func(*Mesh)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRemove = fn
}

// Update reconciles the local index against this frame's mesh enumeration.
func (d *MeshDetector) Update(frame xr.Frame) error {
	if !d.active(frame.Number()) {
		return nil
	}

	samples := frame.DetectedMeshes()
	seen := make([]xr.MeshID, 0, len(samples))
	byID := make(map[xr.MeshID]xr.MeshSample, len(samples))
	for _, s := range samples {
		seen = append(seen, s.ID)
		byID[s.ID] = s
	}
	d.rec.Apply(seen, byID)
	return nil
}

// Meshes returns the currently tracked meshes in stable insertion order.
func (d *MeshDetector) Meshes() []*Mesh {
	return d.rec.Entities()
}

// Count returns the number of tracked meshes.
func (d *MeshDetector) Count() int {
	return d.rec.Len()
}

// Reset removes any remaining entities (firing their remove events).
func (d *MeshDetector) Reset() {
	d.rec.Clear()
}

// Compile-time interface satisfaction check.
var _ Subsystem = (*MeshDetector)(nil)
