package detection

// Light estimation and depth sensing hold a single per-frame snapshot
// rather than an entity index; the reconciler does not apply. They still
// follow the supported/available lifecycle so the frame dispatcher treats
// all subsystems uniformly.

import (
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// LightEstimator surfaces the device's ambient light probe.
type LightEstimator struct {
	base

	estimate xr.LightEstimate
	valid    bool
}

// NewLightEstimator creates a light estimator.
func NewLightEstimator(supported bool) *LightEstimator {
	d := &LightEstimator{
		base: newBase(xr.FeatureLightEstimation, supported),
	}
	d.clearAll = d.dropEstimate
	return d
}

func (d *LightEstimator) dropEstimate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.estimate = xr.LightEstimate{}
	d.valid = false
}

// Update captures this frame's light estimate, if the device has one ready.
func (d *LightEstimator) Update(frame xr.Frame) error {
	if !d.active(frame.Number()) {
		return nil
	}

	estimate, ok := frame.LightEstimate()
	d.mu.Lock()
	defer d.mu.Unlock()
	if ok {
		d.estimate = estimate
	}
	d.valid = ok
	return nil
}

// CurrentEstimate returns the latest light estimate. ok is false when no
// probe has been captured this frame.
func (d *LightEstimator) CurrentEstimate() (xr.LightEstimate, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.estimate, d.valid
}

// Reset drops the captured estimate.
func (d *LightEstimator) Reset() {
	d.dropEstimate()
}

// DepthSensor surfaces the device's per-frame depth buffer.
type DepthSensor struct {
	base

	depth xr.DepthInfo
	valid bool
}

// NewDepthSensor creates a depth sensor.
func NewDepthSensor(supported bool) *DepthSensor {
	d := &DepthSensor{
		base: newBase(xr.FeatureDepthSensing, supported),
	}
	d.clearAll = d.dropDepth
	return d
}

func (d *DepthSensor) dropDepth() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth = xr.DepthInfo{}
	d.valid = false
}

// Update captures this frame's depth information, if available.
func (d *DepthSensor) Update(frame xr.Frame) error {
	if !d.active(frame.Number()) {
		return nil
	}

	depth, ok := frame.DepthInformation()
	d.mu.Lock()
	defer d.mu.Unlock()
	if ok {
		d.depth = depth
	}
	d.valid = ok
	return nil
}

// CurrentDepth returns the latest depth buffer. ok is false when the device
// produced no depth data this frame.
func (d *DepthSensor) CurrentDepth() (xr.DepthInfo, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.depth, d.valid
}

// Reset drops the captured depth buffer.
func (d *DepthSensor) Reset() {
	d.dropDepth()
}

// Compile-time interface satisfaction checks.
var (
	_ Subsystem = (*LightEstimator)(nil)
	_ Subsystem = (*DepthSensor)(nil)
)
