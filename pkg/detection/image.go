package detection

import (
	"strconv"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/reconcile"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// TrackedImage is one registered reference image currently reported by the
// device. Index refers to the reference image registered at negotiation
// time. State flags emulated (extrapolated) tracking.
type TrackedImage struct {
	Index         int
	Pose          xr.Pose
	State         xr.ImageTrackingState
	MeasuredWidth float64
}

func (t *TrackedImage) refresh(s xr.ImageSample) {
	t.Pose = s.Pose
	t.State = s.State
	t.MeasuredWidth = s.MeasuredWidth
}

// ImageTracker surfaces tracked image targets. Identity is the registered
// reference image index.
type ImageTracker struct {
	base
	rec *reconcile.Reconciler[int, *TrackedImage, xr.ImageSample]

	onAdd    func(*TrackedImage)
	onRemove func(*TrackedImage)
}

// NewImageTracker creates an image tracker.
func NewImageTracker(supported bool) *ImageTracker {
	rec, _ := reconcile.New(reconcile.Funcs[int, *TrackedImage, xr.ImageSample]{
		New: func(index int, s xr.ImageSample) (*TrackedImage, error) {
			t := &TrackedImage{Index: index}
			t.refresh(s)
			return t, nil
		},
		Refresh: func(t *TrackedImage, s xr.ImageSample) {
			t.refresh(s)
		},
	})

	d := &ImageTracker{
		base: newBase(xr.FeatureImageTracking, supported),
		rec:  rec,
	}
	d.clearAll = rec.Clear

	rec.OnAdd(func(index int, t *TrackedImage) {
		d.logDetection(log.DetectionEvent{
			Subsystem: string(d.feature),
			Op:        log.DetectionAdd,
			EntityID:  strconv.Itoa(index),
			Count:     rec.Len(),
		})
		d.mu.RLock()
		fn := d.onAdd
		d.mu.RUnlock()
		if fn != nil {
			fn(t)
		}
	})
	rec.OnRemove(func(index int, t *TrackedImage) {
		d.logDetection(log.DetectionEvent{
			Subsystem: string(d.feature),
			Op:        log.DetectionRemove,
			EntityID:  strconv.Itoa(index),
			Count:     rec.Len(),
		})
		d.mu.RLock()
		fn := d.onRemove
		d.mu.RUnlock()
		if fn != nil {
			fn(t)
		}
	})
	return d
}

// OnAdd registers an observer for image targets entering tracking.
func (d *ImageTracker) OnAdd(fn func(*TrackedImage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onAdd = fn
}

// OnRemove registers an observer for image targets leaving tracking.
func (d *ImageTracker) OnRemove(fn func(*TrackedImage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onRemove = fn
}

// Update reconciles the local index against this frame's tracking results.
func (d *ImageTracker) Update(frame xr.Frame) error {
	if !d.active(frame.Number()) {
		return nil
	}

	samples := frame.ImageTrackingResults()
	seen := make([]int, 0, len(samples))
	byIndex := make(map[int]xr.ImageSample, len(samples))
	for _, s := range samples {
		seen = append(seen, s.Index)
		byIndex[s.Index] = s
	}
	d.rec.Apply(seen, byIndex)
	return nil
}

// Images returns the currently tracked image targets.
func (d *ImageTracker) Images() []*TrackedImage {
	return d.rec.Entities()
}

// Count returns the number of tracked image targets.
func (d *ImageTracker) Count() int {
	return d.rec.Len()
}

// Reset removes any remaining entities (firing their remove events).
func (d *ImageTracker) Reset() {
	d.rec.Clear()
}

// Compile-time interface satisfaction check.
var _ Subsystem = (*ImageTracker)(nil)
