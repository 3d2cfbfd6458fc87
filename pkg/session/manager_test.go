package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrhost-protocol/xrhost-go/pkg/detection"
	"github.com/xrhost-protocol/xrhost-go/pkg/negotiate"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

type fakeSurface struct {
	res       xr.Viewport
	destroyed bool
	resizes   []xr.Viewport
}

func (s *fakeSurface) Resolution() xr.Viewport { return s.res }
func (s *fakeSurface) Resize(v xr.Viewport) error {
	s.resizes = append(s.resizes, v)
	return nil
}
func (s *fakeSurface) Destroy() { s.destroyed = true }

type fakeFactory struct {
	err     error
	created []*fakeSurface
}

func (f *fakeFactory) CreateSurface(ctx context.Context, session xr.SessionHandle, scaleFactor float64) (xr.Surface, error) {
	if f.err != nil {
		return nil, f.err
	}
	s := &fakeSurface{res: xr.Viewport{Width: 1920, Height: 1080}}
	f.created = append(f.created, s)
	return s, nil
}

type fakeRefSpace struct{ t xr.ReferenceSpaceType }

func (r fakeRefSpace) Type() xr.ReferenceSpaceType { return r.t }

type fakeSource struct{ cancelled bool }

func (s *fakeSource) Cancel() { s.cancelled = true }

type fakeHandle struct {
	granted      []xr.Feature
	refSpaceErr  error
	renderErr    error
	hitSourceErr error
	endErr       error

	renderStates []xr.RenderState
	source       *fakeSource
	endHandler   func(reason string)
	visHandler   func(state xr.VisibilityState)
	ended        bool
}

func (h *fakeHandle) RequestReferenceSpace(ctx context.Context, t xr.ReferenceSpaceType) (xr.ReferenceSpace, error) {
	if h.refSpaceErr != nil {
		return nil, h.refSpaceErr
	}
	return fakeRefSpace{t: t}, nil
}

func (h *fakeHandle) UpdateRenderState(state xr.RenderState) error {
	if h.renderErr != nil {
		return h.renderErr
	}
	h.renderStates = append(h.renderStates, state)
	return nil
}

func (h *fakeHandle) GrantedFeatures() []xr.Feature { return h.granted }

func (h *fakeHandle) RequestHitTestSource(ctx context.Context, offset xr.Pose) (xr.HitTestSource, error) {
	if h.hitSourceErr != nil {
		return nil, h.hitSourceErr
	}
	h.source = &fakeSource{}
	return h.source, nil
}

func (h *fakeHandle) PersistAnchor(ctx context.Context, id xr.AnchorID) (string, error) {
	return "persisted-" + string(id), nil
}

func (h *fakeHandle) RestorePersistentAnchor(ctx context.Context, name string) (xr.AnchorID, error) {
	return xr.AnchorID(name), nil
}

func (h *fakeHandle) SetEndHandler(fn func(reason string))             { h.endHandler = fn }
func (h *fakeHandle) SetVisibilityHandler(fn func(xr.VisibilityState)) { h.visHandler = fn }

func (h *fakeHandle) End(ctx context.Context) error {
	h.ended = true
	return h.endErr
}

type fakeDevice struct {
	supported  map[xr.SessionMode]bool
	requestErr error
	handle     *fakeHandle
	requests   int
	lastReq    *xr.FeatureRequest
}

func (d *fakeDevice) SessionSupported(mode xr.SessionMode) bool { return d.supported[mode] }

func (d *fakeDevice) RequestSession(ctx context.Context, mode xr.SessionMode, req *xr.FeatureRequest) (xr.SessionHandle, error) {
	d.requests++
	d.lastReq = req
	if d.requestErr != nil {
		return nil, d.requestErr
	}
	if d.handle == nil {
		d.handle = &fakeHandle{}
	}
	if d.handle.granted == nil {
		d.handle.granted = append(req.Required(), req.Optional()...)
	}
	return d.handle, nil
}

type fakeCamera struct {
	near, far  float64
	transforms []xr.Pose
	intrinsics []xr.Intrinsics
	clipFn     func(near, far float64)
}

func (c *fakeCamera) SetSessionTransform(pose xr.Pose) { c.transforms = append(c.transforms, pose) }
func (c *fakeCamera) SetIntrinsics(i xr.Intrinsics)    { c.intrinsics = append(c.intrinsics, i) }
func (c *fakeCamera) ClipPlanes() (float64, float64)   { return c.near, c.far }
func (c *fakeCamera) OnClipChanged(fn func(near, far float64)) func() {
	c.clipFn = fn
	return func() { c.clipFn = nil }
}

type fakeBitmap struct{}

func (fakeBitmap) Bounds() xr.Viewport { return xr.Viewport{Width: 32, Height: 32} }

type fakeDecoder struct{ failOn string }

func (d *fakeDecoder) Decode(ctx context.Context, img xr.ReferenceImage) (xr.Bitmap, error) {
	if d.failOn != "" && string(img.Data) == d.failOn {
		return nil, errors.New("corrupt image")
	}
	return fakeBitmap{}, nil
}

type fakeFrame struct {
	number  uint64
	pose    *xr.ViewerPose
	planes  []xr.PlaneSample
	meshes  []xr.MeshSample
	images  []xr.ImageSample
	anchors []xr.AnchorSample
	hits    []xr.HitSample
}

func (f *fakeFrame) Number() uint64 { return f.number }

func (f *fakeFrame) ViewerPose(space xr.ReferenceSpace) (xr.ViewerPose, bool) {
	if f.pose == nil {
		return xr.ViewerPose{}, false
	}
	return *f.pose, true
}

func (f *fakeFrame) DetectedPlanes() []xr.PlaneSample        { return f.planes }
func (f *fakeFrame) DetectedMeshes() []xr.MeshSample         { return f.meshes }
func (f *fakeFrame) ImageTrackingResults() []xr.ImageSample  { return f.images }
func (f *fakeFrame) TrackedAnchors() []xr.AnchorSample       { return f.anchors }
func (f *fakeFrame) HitTestResults(xr.HitTestSource) []xr.HitSample {
	return f.hits
}
func (f *fakeFrame) LightEstimate() (xr.LightEstimate, bool) { return xr.LightEstimate{}, false }
func (f *fakeFrame) DepthInformation() (xr.DepthInfo, bool)  { return xr.DepthInfo{}, false }
func (f *fakeFrame) CreateAnchor(pose xr.Pose) (xr.AnchorID, error) {
	return "a-new", nil
}

func trackedFrame(number uint64) *fakeFrame {
	return &fakeFrame{
		number: number,
		pose: &xr.ViewerPose{
			Views: []xr.View{{
				Eye:        xr.EyeLeft,
				Projection: xr.FieldOfView{AngleLeft: 0.7, AngleRight: 0.7, AngleUp: 0.6, AngleDown: 0.6},
				Viewport:   xr.Viewport{Width: 960, Height: 1080},
			}},
		},
	}
}

type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) handler() EventHandler {
	return func(evt Event) { r.events = append(r.events, evt) }
}

func (r *eventRecorder) count(t EventType) int {
	n := 0
	for _, evt := range r.events {
		if evt.Type == t {
			n++
		}
	}
	return n
}

func newTestManager(t *testing.T, device *fakeDevice) (*Manager, *fakeFactory, *eventRecorder) {
	t.Helper()

	factory := &fakeFactory{}
	config := DefaultConfig()
	config.Device = device
	config.SurfaceFactory = factory
	config.ImageDecoder = &fakeDecoder{}

	m, err := NewManager(config)
	require.NoError(t, err)

	rec := &eventRecorder{}
	m.OnEvent(rec.handler())
	return m, factory, rec
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStartVR(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}}
	m, factory, rec := newTestManager(t, device)
	camera := &fakeCamera{near: 0.1, far: 500}

	err := m.Start(context.Background(), camera, xr.ModeImmersiveVR, xr.ReferenceSpaceLocalFloor, negotiate.Options{})
	require.NoError(t, err)

	assert.True(t, m.Active())
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, 1, rec.count(EventStarted))

	sess := m.CurrentSession()
	require.NotNil(t, sess)
	assert.Equal(t, xr.ModeImmersiveVR, sess.Mode())
	assert.Equal(t, xr.ReferenceSpaceLocalFloor, sess.ReferenceSpaceType())
	near, far := sess.ClipPlanes()
	assert.Equal(t, 0.1, near)
	assert.Equal(t, 500.0, far)

	require.Len(t, factory.created, 1)
	require.Len(t, device.handle.renderStates, 1)
}

func TestStartModeUnavailable(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{}}
	m, _, rec := newTestManager(t, device)

	err := m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{})

	assert.ErrorIs(t, err, ErrModeUnsupported)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, device.requests)
	// Delivered twice: the returned error and the error event.
	assert.Equal(t, 1, rec.count(EventError))
}

func TestStartExclusive(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}}
	m, _, _ := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{}))
	first := m.CurrentSession()

	err := m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{})

	assert.ErrorIs(t, err, ErrSessionActive)
	assert.Equal(t, StateRunning, m.State())
	assert.Equal(t, first.ID(), m.CurrentSession().ID())
}

func TestStartAcquisitionFailureEndsGrantedSession(t *testing.T) {
	device := &fakeDevice{
		supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true},
		handle:    &fakeHandle{refSpaceErr: errors.New("no such space")},
	}
	m, _, rec := newTestManager(t, device)

	err := m.Start(context.Background(), nil, xr.ModeImmersiveAR, xr.ReferenceSpaceBoundedFloor, negotiate.Options{})

	require.Error(t, err)
	assert.Equal(t, StateIdle, m.State())
	assert.True(t, device.handle.ended, "the granted session must not be left dangling")
	assert.Equal(t, 1, rec.count(EventError))
}

func TestStartCorruptImageFailsBeforeDeviceRequest(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true}}
	factory := &fakeFactory{}
	config := DefaultConfig()
	config.Device = device
	config.SurfaceFactory = factory
	config.ImageDecoder = &fakeDecoder{failOn: "bad"}

	m, err := NewManager(config)
	require.NoError(t, err)

	err = m.Start(context.Background(), nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{
		ImageTracking:   true,
		ReferenceImages: []xr.ReferenceImage{{Data: []byte("bad"), WidthInMeters: 0.1}},
	})

	require.Error(t, err)
	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 0, device.requests, "no device request may be issued after a decode failure")
	assert.Empty(t, factory.created)
}

// callbackDevice invokes a hook inside RequestSession, while the manager is
// still in Starting.
type callbackDevice struct {
	*fakeDevice
	onRequest func()
}

func (d *callbackDevice) RequestSession(ctx context.Context, mode xr.SessionMode, req *xr.FeatureRequest) (xr.SessionHandle, error) {
	if d.onRequest != nil {
		d.onRequest()
	}
	return d.fakeDevice.RequestSession(ctx, mode, req)
}

func TestEndWhileStartingRejected(t *testing.T) {
	device := &callbackDevice{
		fakeDevice: &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}},
	}
	config := DefaultConfig()
	config.Device = device
	config.SurfaceFactory = &fakeFactory{}

	m, err := NewManager(config)
	require.NoError(t, err)

	var endErr error
	device.onRequest = func() {
		endErr = m.End(context.Background())
	}

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{}))
	assert.ErrorIs(t, endErr, ErrSessionNotEstablished)
}

func TestEndTeardownCompleteness(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true}}
	m, factory, rec := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{
		Anchors:        true,
		PlaneDetection: true,
		MeshDetection:  true,
	}))

	m.OnFrame(&fakeFrame{
		number: 1,
		pose:   &xr.ViewerPose{},
		planes: []xr.PlaneSample{{ID: "p1"}, {ID: "p2"}},
		meshes: []xr.MeshSample{{ID: "m1"}},
	})
	require.Equal(t, 2, m.PlaneDetector().Count())

	require.NoError(t, m.End(context.Background()))

	assert.Equal(t, StateIdle, m.State())
	assert.False(t, m.Active())
	assert.Nil(t, m.CurrentSession())
	assert.True(t, device.handle.ended)
	assert.True(t, factory.created[0].destroyed)
	assert.True(t, device.handle.source.cancelled)
	assert.Equal(t, 1, rec.count(EventEnded))

	for _, s := range m.subsystems {
		assert.False(t, s.Available(), "subsystem %s must deactivate on end", s.Feature())
	}
	assert.Equal(t, 0, m.PlaneDetector().Count())
	assert.Equal(t, 0, m.MeshDetector().Count())
	assert.Equal(t, 0, m.AnchorTracker().Count())
}

func TestEndErrors(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{}}
	m, _, _ := newTestManager(t, device)

	assert.ErrorIs(t, m.End(context.Background()), ErrNotRunning)
}

func TestPlaneDiffAcrossFrames(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true}}
	m, _, _ := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{
		PlaneDetection: true,
	}))

	var added, removed []xr.PlaneID
	m.PlaneDetector().OnAdd(func(p *detection.Plane) { added = append(added, p.ID) })
	m.PlaneDetector().OnRemove(func(p *detection.Plane) { removed = append(removed, p.ID) })

	m.OnFrame(&fakeFrame{
		number: 1,
		pose:   &xr.ViewerPose{},
		planes: []xr.PlaneSample{{ID: "p1"}, {ID: "p2"}},
	})
	require.Equal(t, []xr.PlaneID{"p1", "p2"}, added)

	added = nil
	m.OnFrame(&fakeFrame{
		number: 2,
		pose:   &xr.ViewerPose{},
		planes: []xr.PlaneSample{{ID: "p1"}},
	})

	assert.Empty(t, added, "frame 2 must fire zero add events")
	assert.Equal(t, []xr.PlaneID{"p2"}, removed, "frame 2 must fire exactly one remove")
	assert.Equal(t, 1, m.PlaneDetector().Count())
}

func TestDeviceInitiatedEnd(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true}}
	m, _, rec := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{
		PlaneDetection: true,
	}))

	device.handle.endHandler("headset removed")

	assert.Equal(t, StateIdle, m.State())
	assert.Equal(t, 1, rec.count(EventEnded))
	assert.False(t, device.handle.ended, "device already ended the session itself")

	// A frame arriving after the unsolicited end is a no-op.
	m.OnFrame(&fakeFrame{
		number: 9,
		pose:   &xr.ViewerPose{},
		planes: []xr.PlaneSample{{ID: "p1"}},
	})
	assert.Equal(t, 0, m.PlaneDetector().Count())
	assert.Equal(t, 0, rec.count(EventFrame))

	// Still exactly one ended notification afterwards.
	assert.ErrorIs(t, m.End(context.Background()), ErrNotRunning)
	assert.Equal(t, 1, rec.count(EventEnded))
}

func TestOnFrameMissingPoseSkips(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true}}
	m, _, rec := newTestManager(t, device)
	camera := &fakeCamera{near: 0.1, far: 100}

	require.NoError(t, m.Start(context.Background(), camera, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{
		PlaneDetection: true,
	}))

	m.OnFrame(&fakeFrame{
		number: 1,
		planes: []xr.PlaneSample{{ID: "p1"}},
	})

	assert.Equal(t, 0, rec.count(EventFrame))
	assert.Equal(t, 0, rec.count(EventError), "a transient missing pose is not an error")
	assert.Equal(t, 0, m.PlaneDetector().Count())
	assert.Empty(t, camera.transforms)
}

func TestOnFrameDispatch(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true}}
	m, _, rec := newTestManager(t, device)
	camera := &fakeCamera{near: 0.1, far: 100}

	require.NoError(t, m.Start(context.Background(), camera, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{}))

	var views int
	m.SetViewsHandler(func(pose xr.ViewerPose) { views += len(pose.Views) })
	var inputs int
	m.SetInputHandler(func(xr.Frame) { inputs++ })

	m.OnFrame(trackedFrame(1))
	m.OnFrame(trackedFrame(2))

	assert.Equal(t, 2, views)
	assert.Equal(t, 2, inputs)
	assert.Equal(t, 2, rec.count(EventFrame))
	assert.Len(t, camera.transforms, 2)
	assert.Len(t, camera.intrinsics, 1, "intrinsics push at most once per session")
}

func TestClipChangeReissuesRenderState(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}}
	m, _, _ := newTestManager(t, device)
	camera := &fakeCamera{near: 0.1, far: 100}

	require.NoError(t, m.Start(context.Background(), camera, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{}))
	require.NotNil(t, camera.clipFn)

	camera.clipFn(0.5, 250)

	states := device.handle.renderStates
	require.Len(t, states, 2)
	assert.Equal(t, 0.5, states[1].NearClip)
	assert.Equal(t, 250.0, states[1].FarClip)

	near, far := m.CurrentSession().ClipPlanes()
	assert.Equal(t, 0.5, near)
	assert.Equal(t, 250.0, far)
}

func TestDeviceLostAndRestored(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}}
	m, factory, rec := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{}))

	m.HandleDeviceLost()

	assert.True(t, factory.created[0].destroyed)
	assert.Equal(t, 1, rec.count(EventDeviceLost))
	assert.True(t, m.Active(), "device loss must not end the session")
	assert.Nil(t, m.CurrentSession().Surface())

	require.NoError(t, m.HandleDeviceRestored(context.Background()))

	assert.Equal(t, 1, rec.count(EventDeviceRestored))
	require.Len(t, factory.created, 2)
	assert.NotNil(t, m.CurrentSession().Surface())
}

func TestDeviceRestoreFailureKeepsSession(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}}
	m, factory, rec := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{}))
	m.HandleDeviceLost()

	factory.err = errors.New("context unavailable")
	err := m.HandleDeviceRestored(context.Background())

	require.Error(t, err)
	assert.Equal(t, 1, rec.count(EventError))
	assert.True(t, m.Active(), "a failed restore must not end the session")

	// A later retry can still succeed.
	factory.err = nil
	require.NoError(t, m.HandleDeviceRestored(context.Background()))
}

func TestResolutionPropagation(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}}
	m, factory, _ := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{}))

	surface := factory.created[0]
	m.OnFrame(trackedFrame(1))
	require.Len(t, surface.resizes, 1)

	// Unchanged resolution, no propagation.
	m.OnFrame(trackedFrame(2))
	assert.Len(t, surface.resizes, 1)

	surface.res = xr.Viewport{Width: 2560, Height: 1440}
	m.OnFrame(trackedFrame(3))
	require.Len(t, surface.resizes, 2)
	assert.Equal(t, xr.Viewport{Width: 2560, Height: 1440}, surface.resizes[1])
}

func TestVisibilityEvents(t *testing.T) {
	device := &fakeDevice{supported: map[xr.SessionMode]bool{xr.ModeImmersiveVR: true}}
	m, _, rec := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocal, negotiate.Options{}))

	device.handle.visHandler(xr.VisibilityHidden)

	require.Equal(t, 1, rec.count(EventVisibilityChanged))
	for _, evt := range rec.events {
		if evt.Type == EventVisibilityChanged {
			assert.Equal(t, xr.VisibilityHidden, evt.Visibility)
		}
	}
}

func TestPartialGrantProceeds(t *testing.T) {
	device := &fakeDevice{
		supported: map[xr.SessionMode]bool{xr.ModeImmersiveAR: true},
		handle: &fakeHandle{granted: []xr.Feature{
			xr.FeatureLocal, xr.FeatureHitTest, xr.FeatureLightEstimation, xr.FeaturePlaneDetection,
		}},
	}
	m, _, _ := newTestManager(t, device)

	require.NoError(t, m.Start(context.Background(), nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{
		PlaneDetection: true,
		MeshDetection:  true,
	}))

	assert.True(t, m.PlaneDetector().Available())
	assert.False(t, m.MeshDetector().Available(), "ungranted features stay unavailable")
	assert.True(t, m.Active())
}
