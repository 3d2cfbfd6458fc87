package simulate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Simulator errors.
var (
	ErrSessionGranted  = errors.New("a session is already granted")
	ErrModeUnsupported = errors.New("session mode not supported")
	ErrCorruptImage    = errors.New("corrupt reference image")
)

// defaultView is the single rendered view reported while tracking.
var defaultView = xr.View{
	Eye:        xr.EyeNone,
	Projection: xr.FieldOfView{AngleLeft: 0.7, AngleRight: 0.7, AngleUp: 0.6, AngleDown: 0.6},
	Viewport:   xr.Viewport{Width: 1920, Height: 1080},
}

// SimDevice is an in-memory XR device. It implements xr.Device,
// xr.SurfaceFactory and xr.ImageDecoder, and produces frames that snapshot
// the current entity enumerations.
//
// All methods are safe for concurrent use, though sessions are typically
// driven from a single goroutine.
type SimDevice struct {
	mu sync.Mutex

	modes     map[xr.SessionMode]bool
	grantable map[xr.Feature]bool
	corrupt   map[string]bool

	requestErr  error
	refSpaceErr error
	surfaceErr  error

	handle *simHandle

	frameNum uint64
	poseLost bool
	pose     xr.Pose

	planes  []xr.PlaneSample
	meshes  []xr.MeshSample
	images  []xr.ImageSample
	anchors []xr.AnchorSample
	hits    []xr.HitSample
	light   *xr.LightEstimate
	depth   *xr.DepthInfo

	persisted map[string]xr.Pose
}

// NewDevice creates a simulated device supporting the given modes and
// granting the given optional features when requested.
func NewDevice(modes []xr.SessionMode, grantable []xr.Feature) *SimDevice {
	d := &SimDevice{
		modes:     make(map[xr.SessionMode]bool),
		grantable: make(map[xr.Feature]bool),
		corrupt:   make(map[string]bool),
		persisted: make(map[string]xr.Pose),
	}
	for _, m := range modes {
		d.modes[m] = true
	}
	for _, f := range grantable {
		d.grantable[f] = true
	}
	return d
}

// SessionSupported reports whether the device can open a session of the
// given mode.
func (d *SimDevice) SessionSupported(mode xr.SessionMode) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.modes[mode]
}

// RequestSession grants a session. Reference-space features in the required
// set are always granted; optional features are granted only when the device
// was configured with them.
func (d *SimDevice) RequestSession(ctx context.Context, mode xr.SessionMode, req *xr.FeatureRequest) (xr.SessionHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.requestErr != nil {
		return nil, d.requestErr
	}
	if !d.modes[mode] {
		return nil, ErrModeUnsupported
	}
	if d.handle != nil {
		return nil, ErrSessionGranted
	}

	granted := req.Required()
	for _, f := range req.Optional() {
		if d.grantable[f] {
			granted = append(granted, f)
		}
	}

	d.handle = &simHandle{device: d, granted: granted}
	return d.handle, nil
}

// CreateSurface implements xr.SurfaceFactory.
func (d *SimDevice) CreateSurface(ctx context.Context, session xr.SessionHandle, scaleFactor float64) (xr.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surfaceErr != nil {
		return nil, d.surfaceErr
	}
	return &simSurface{
		res: xr.Viewport{
			Width:  int(float64(defaultView.Viewport.Width) * scaleFactor),
			Height: int(float64(defaultView.Viewport.Height) * scaleFactor),
		},
	}, nil
}

// Decode implements xr.ImageDecoder. Images marked corrupt fail to decode.
func (d *SimDevice) Decode(ctx context.Context, img xr.ReferenceImage) (xr.Bitmap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.corrupt[string(img.Data)] {
		return nil, ErrCorruptImage
	}
	return simBitmap{res: xr.Viewport{Width: 64, Height: 64}}, nil
}

// MarkCorrupt makes future decodes of the given image data fail.
func (d *SimDevice) MarkCorrupt(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.corrupt[string(data)] = true
}

// Error injection for negative-path tests and the simulator CLI.

// SetRequestError makes RequestSession fail with err. Pass nil to clear.
func (d *SimDevice) SetRequestError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requestErr = err
}

// SetReferenceSpaceError makes reference-space acquisition fail with err.
func (d *SimDevice) SetReferenceSpaceError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.refSpaceErr = err
}

// SetSurfaceError makes surface construction fail with err.
func (d *SimDevice) SetSurfaceError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.surfaceErr = err
}

// Entity enumeration control. Each Set call replaces the full enumeration,
// matching the device contract that absence means removal.

// SetPlanes replaces the detected plane enumeration.
func (d *SimDevice) SetPlanes(planes []xr.PlaneSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.planes = append([]xr.PlaneSample(nil), planes...)
}

// UpsertPlane adds or refreshes one plane in the enumeration.
func (d *SimDevice) UpsertPlane(sample xr.PlaneSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.planes {
		if p.ID == sample.ID {
			d.planes[i] = sample
			return
		}
	}
	d.planes = append(d.planes, sample)
}

// RemovePlane drops one plane from the enumeration.
func (d *SimDevice) RemovePlane(id xr.PlaneID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, p := range d.planes {
		if p.ID == id {
			d.planes = append(d.planes[:i], d.planes[i+1:]...)
			return
		}
	}
}

// SetMeshes replaces the detected mesh enumeration.
func (d *SimDevice) SetMeshes(meshes []xr.MeshSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.meshes = append([]xr.MeshSample(nil), meshes...)
}

// SetImages replaces the image tracking results.
func (d *SimDevice) SetImages(images []xr.ImageSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.images = append([]xr.ImageSample(nil), images...)
}

// SetHits replaces the hit-test results.
func (d *SimDevice) SetHits(hits []xr.HitSample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hits = append([]xr.HitSample(nil), hits...)
}

// SetLight sets the ambient light estimate. Pass nil to clear.
func (d *SimDevice) SetLight(estimate *xr.LightEstimate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.light = estimate
}

// SetDepth sets the per-frame depth buffer. Pass nil to clear.
func (d *SimDevice) SetDepth(depth *xr.DepthInfo) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.depth = depth
}

// SetViewerPose sets the tracked head pose.
func (d *SimDevice) SetViewerPose(pose xr.Pose) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pose = pose
	d.poseLost = false
}

// SetPoseLost simulates transient tracking loss. Frames produced while lost
// report no viewer pose.
func (d *SimDevice) SetPoseLost(lost bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.poseLost = lost
}

// NextFrame produces the next hardware frame, snapshotting the current
// entity enumerations.
func (d *SimDevice) NextFrame() xr.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.frameNum++
	f := &simFrame{
		device:  d,
		number:  d.frameNum,
		poseOK:  !d.poseLost,
		pose:    xr.ViewerPose{Pose: d.pose, Views: []xr.View{defaultView}},
		planes:  append([]xr.PlaneSample(nil), d.planes...),
		meshes:  append([]xr.MeshSample(nil), d.meshes...),
		images:  append([]xr.ImageSample(nil), d.images...),
		anchors: append([]xr.AnchorSample(nil), d.anchors...),
		hits:    append([]xr.HitSample(nil), d.hits...),
	}
	if d.light != nil {
		light := *d.light
		f.light = &light
	}
	if d.depth != nil {
		depth := *d.depth
		f.depth = &depth
	}
	return f
}

// FrameNumber returns the last produced frame number.
func (d *SimDevice) FrameNumber() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frameNum
}

// EndSession fires the device-initiated end notification, as when the user
// removes the headset.
func (d *SimDevice) EndSession(reason string) {
	d.mu.Lock()
	handle := d.handle
	d.handle = nil
	d.mu.Unlock()

	if handle == nil {
		return
	}
	handle.mu.Lock()
	fn := handle.endHandler
	handle.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
	d.sessionEnded()
}

// SetVisibility fires the visibility change notification.
func (d *SimDevice) SetVisibility(state xr.VisibilityState) {
	d.mu.Lock()
	handle := d.handle
	d.mu.Unlock()

	if handle == nil {
		return
	}
	handle.mu.Lock()
	fn := handle.visHandler
	handle.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}

// createAnchor registers a new tracked anchor. It appears in the enumeration
// from the next frame on.
func (d *SimDevice) createAnchor(pose xr.Pose) xr.AnchorID {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := xr.AnchorID(uuid.NewString())
	d.anchors = append(d.anchors, xr.AnchorSample{ID: id, Pose: pose})
	return id
}

func (d *SimDevice) removeAnchorLocked(id xr.AnchorID) {
	for i, a := range d.anchors {
		if a.ID == id {
			d.anchors = append(d.anchors[:i], d.anchors[i+1:]...)
			return
		}
	}
}

// RemoveAnchor drops a tracked anchor from the enumeration.
func (d *SimDevice) RemoveAnchor(id xr.AnchorID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.removeAnchorLocked(id)
}

// sessionEnded clears the granted handle after a caller-initiated end.
func (d *SimDevice) sessionEnded() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handle = nil
	d.planes = nil
	d.meshes = nil
	d.images = nil
	d.anchors = nil
	d.hits = nil
}

// simHandle is a granted simulated session.
type simHandle struct {
	mu sync.Mutex

	device  *SimDevice
	granted []xr.Feature

	endHandler func(reason string)
	visHandler func(state xr.VisibilityState)
	source     *simSource
	ended      bool
}

func (h *simHandle) RequestReferenceSpace(ctx context.Context, t xr.ReferenceSpaceType) (xr.ReferenceSpace, error) {
	h.device.mu.Lock()
	err := h.device.refSpaceErr
	h.device.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return simRefSpace{t: t}, nil
}

func (h *simHandle) UpdateRenderState(state xr.RenderState) error {
	return nil
}

func (h *simHandle) GrantedFeatures() []xr.Feature {
	return append([]xr.Feature(nil), h.granted...)
}

func (h *simHandle) RequestHitTestSource(ctx context.Context, offset xr.Pose) (xr.HitTestSource, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.source = &simSource{}
	return h.source, nil
}

func (h *simHandle) PersistAnchor(ctx context.Context, id xr.AnchorID) (string, error) {
	h.device.mu.Lock()
	defer h.device.mu.Unlock()

	for _, a := range h.device.anchors {
		if a.ID == id {
			name := "anchor-" + uuid.NewString()
			h.device.persisted[name] = a.Pose
			return name, nil
		}
	}
	return "", fmt.Errorf("anchor %s not tracked", id)
}

func (h *simHandle) RestorePersistentAnchor(ctx context.Context, name string) (xr.AnchorID, error) {
	h.device.mu.Lock()
	defer h.device.mu.Unlock()

	pose, ok := h.device.persisted[name]
	if !ok {
		return "", fmt.Errorf("no persisted anchor %q", name)
	}
	id := xr.AnchorID(uuid.NewString())
	h.device.anchors = append(h.device.anchors, xr.AnchorSample{ID: id, Pose: pose})
	return id, nil
}

func (h *simHandle) SetEndHandler(fn func(reason string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.endHandler = fn
}

func (h *simHandle) SetVisibilityHandler(fn func(state xr.VisibilityState)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.visHandler = fn
}

func (h *simHandle) End(ctx context.Context) error {
	h.mu.Lock()
	if h.ended {
		h.mu.Unlock()
		return nil
	}
	h.ended = true
	h.mu.Unlock()

	h.device.sessionEnded()
	return nil
}

type simRefSpace struct{ t xr.ReferenceSpaceType }

func (r simRefSpace) Type() xr.ReferenceSpaceType { return r.t }

type simSource struct {
	mu        sync.Mutex
	cancelled bool
}

func (s *simSource) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

type simSurface struct {
	mu        sync.Mutex
	res       xr.Viewport
	destroyed bool
}

func (s *simSurface) Resolution() xr.Viewport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.res
}

func (s *simSurface) Resize(v xr.Viewport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.res = v
	return nil
}

func (s *simSurface) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.destroyed = true
}

type simBitmap struct{ res xr.Viewport }

func (b simBitmap) Bounds() xr.Viewport { return b.res }

// simFrame is one snapshotted hardware frame.
type simFrame struct {
	device *SimDevice
	number uint64
	poseOK bool
	pose   xr.ViewerPose

	planes  []xr.PlaneSample
	meshes  []xr.MeshSample
	images  []xr.ImageSample
	anchors []xr.AnchorSample
	hits    []xr.HitSample
	light   *xr.LightEstimate
	depth   *xr.DepthInfo
}

func (f *simFrame) Number() uint64 { return f.number }

func (f *simFrame) ViewerPose(space xr.ReferenceSpace) (xr.ViewerPose, bool) {
	if !f.poseOK {
		return xr.ViewerPose{}, false
	}
	return f.pose, true
}

func (f *simFrame) DetectedPlanes() []xr.PlaneSample       { return f.planes }
func (f *simFrame) DetectedMeshes() []xr.MeshSample        { return f.meshes }
func (f *simFrame) ImageTrackingResults() []xr.ImageSample { return f.images }
func (f *simFrame) TrackedAnchors() []xr.AnchorSample      { return f.anchors }

func (f *simFrame) HitTestResults(source xr.HitTestSource) []xr.HitSample {
	if source == nil {
		return nil
	}
	return f.hits
}

func (f *simFrame) LightEstimate() (xr.LightEstimate, bool) {
	if f.light == nil {
		return xr.LightEstimate{}, false
	}
	return *f.light, true
}

func (f *simFrame) DepthInformation() (xr.DepthInfo, bool) {
	if f.depth == nil {
		return xr.DepthInfo{}, false
	}
	return *f.depth, true
}

func (f *simFrame) CreateAnchor(pose xr.Pose) (xr.AnchorID, error) {
	return f.device.createAnchor(pose), nil
}

// Compile-time interface satisfaction checks.
var (
	_ xr.Device         = (*SimDevice)(nil)
	_ xr.SurfaceFactory = (*SimDevice)(nil)
	_ xr.ImageDecoder   = (*SimDevice)(nil)
	_ xr.SessionHandle  = (*simHandle)(nil)
	_ xr.Frame          = (*simFrame)(nil)
	_ xr.Surface        = (*simSurface)(nil)
)
