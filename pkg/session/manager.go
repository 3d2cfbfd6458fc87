package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xrhost-protocol/xrhost-go/pkg/detection"
	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/negotiate"
	"github.com/xrhost-protocol/xrhost-go/pkg/persistence"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// subsystem is the manager-side view of a detection subsystem: the frame
// contract plus the observer wiring every concrete subsystem promotes from
// its shared base.
type subsystem interface {
	detection.Subsystem
	OnUnavailable(fn func())
	SetErrorFunc(fn detection.ErrorFunc)
	SetEventLogger(logger log.Logger, sessionID string)
}

// Manager drives the session lifecycle state machine and the per-frame
// dispatch. It is the exclusive owner of the Session object.
type Manager struct {
	config      Config
	logger      *slog.Logger
	eventLogger log.Logger

	negotiator *negotiate.Negotiator
	store      *persistence.AnchorStore

	hitTester      *detection.HitTester
	lightEstimator *detection.LightEstimator
	imageTracker   *detection.ImageTracker
	anchorTracker  *detection.AnchorTracker
	planeDetector  *detection.PlaneDetector
	depthSensor    *detection.DepthSensor
	meshDetector   *detection.MeshDetector

	// subsystems holds the frame dispatch sequence. The order is fixed:
	// hit-test, light-estimation, image-tracking, anchors, plane-detection,
	// depth-sensing, mesh-detection.
	subsystems []subsystem

	mu        sync.Mutex
	state     State
	sessionID string
	sess      *Session

	clipCancel       func()
	intrinsicsPushed bool
	surfaceLost      bool

	handlerMu     sync.Mutex
	eventHandlers []EventHandler
	viewsHandler  func(pose xr.ViewerPose)
	inputHandler  func(frame xr.Frame)
}

// NewManager creates a session manager.
func NewManager(config Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	eventLogger := config.EventLogger
	if eventLogger == nil {
		eventLogger = log.NoopLogger{}
	}

	supported := func(f xr.Feature) bool {
		for _, v := range config.SupportedFeatures {
			if v == f {
				return true
			}
		}
		return false
	}

	m := &Manager{
		config:      config,
		logger:      logger,
		eventLogger: eventLogger,
		negotiator:  negotiate.NewNegotiator(config.ImageDecoder),

		hitTester:      detection.NewHitTester(supported(xr.FeatureHitTest)),
		lightEstimator: detection.NewLightEstimator(supported(xr.FeatureLightEstimation)),
		imageTracker:   detection.NewImageTracker(supported(xr.FeatureImageTracking)),
		anchorTracker:  detection.NewAnchorTracker(supported(xr.FeatureAnchors)),
		planeDetector:  detection.NewPlaneDetector(supported(xr.FeaturePlaneDetection)),
		depthSensor:    detection.NewDepthSensor(supported(xr.FeatureDepthSensing)),
		meshDetector:   detection.NewMeshDetector(supported(xr.FeatureMeshDetection)),

		state: StateIdle,
	}
	m.subsystems = []subsystem{
		m.hitTester,
		m.lightEstimator,
		m.imageTracker,
		m.anchorTracker,
		m.planeDetector,
		m.depthSensor,
		m.meshDetector,
	}

	if config.AnchorStorePath != "" {
		m.store = persistence.NewAnchorStore(config.AnchorStorePath)
		m.anchorTracker.SetStore(m.store)
	}

	for _, s := range m.subsystems {
		feature := s.Feature()
		s.OnUnavailable(func() {
			m.emit(Event{Type: EventSubsystemUnavailable, Feature: feature})
		})
		s.SetErrorFunc(func(f xr.Feature, err error) {
			m.emit(Event{Type: EventError, Feature: f, Err: err})
		})
	}

	return m, nil
}

// Start negotiates and establishes a session. On any failure after the
// device granted the session, the granted session is ended before the error
// is reported, so no session is left dangling on the device. The error is
// both returned and delivered to the event observers.
func (m *Manager) Start(
	ctx context.Context,
	camera xr.Camera,
	mode xr.SessionMode,
	refSpace xr.ReferenceSpaceType,
	opts negotiate.Options,
) error {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.state = StateStarting
	m.sessionID = uuid.NewString()
	sessionID := m.sessionID
	m.mu.Unlock()

	m.logState(StateIdle, StateStarting, mode, "start requested")
	m.logger.Debug("starting session", "sessionID", sessionID, "mode", mode.String())

	if !m.config.Device.SessionSupported(mode) {
		return m.failStart(mode, ErrModeUnsupported)
	}

	req, err := m.negotiator.Build(ctx, mode, refSpace, opts, m.featureSupported)
	if err != nil {
		return m.failStart(mode, fmt.Errorf("negotiate features: %w", err))
	}

	handle, err := m.config.Device.RequestSession(ctx, mode, req)
	if err != nil {
		return m.failStart(mode, fmt.Errorf("request session: %w", err))
	}

	space, err := handle.RequestReferenceSpace(ctx, refSpace)
	if err != nil {
		m.endDangling(ctx, handle)
		return m.failStart(mode, fmt.Errorf("request reference space: %w", err))
	}

	surface, err := m.config.SurfaceFactory.CreateSurface(ctx, handle, m.config.ScaleFactor)
	if err != nil {
		m.endDangling(ctx, handle)
		return m.failStart(mode, fmt.Errorf("create surface: %w", err))
	}

	near, far := m.config.NearClip, m.config.FarClip
	if camera != nil {
		near, far = camera.ClipPlanes()
	}
	if err := handle.UpdateRenderState(xr.RenderState{Surface: surface, NearClip: near, FarClip: far}); err != nil {
		surface.Destroy()
		m.endDangling(ctx, handle)
		return m.failStart(mode, fmt.Errorf("update render state: %w", err))
	}

	sess := &Session{
		id:       sessionID,
		mode:     mode,
		refType:  refSpace,
		granted:  handle.GrantedFeatures(),
		handle:   handle,
		refSpace: space,
		surface:  surface,
		camera:   camera,
		nearClip: near,
		farClip:  far,
	}

	for _, s := range m.subsystems {
		s.SetEventLogger(m.eventLogger, sessionID)
		s.SetAvailable(sess.Granted(s.Feature()))
	}

	if m.hitTester.Available() {
		source, err := handle.RequestHitTestSource(ctx, xr.Pose{})
		if err != nil {
			// Subsystem-local: the session proceeds without hit testing.
			m.logger.Warn("hit-test source request failed", "sessionID", sessionID, "error", err)
			m.emit(Event{Type: EventError, Feature: xr.FeatureHitTest, Err: err})
		} else {
			m.hitTester.BindSource(source)
		}
	}

	m.anchorTracker.BindSession(handle)
	if m.anchorTracker.Available() && m.store != nil {
		if err := m.anchorTracker.RestorePersisted(ctx); err != nil {
			m.logger.Warn("anchor restore failed", "sessionID", sessionID, "error", err)
			m.emit(Event{Type: EventError, Feature: xr.FeatureAnchors, Err: err})
		}
	}

	var clipCancel func()
	if camera != nil {
		clipCancel = camera.OnClipChanged(func(near, far float64) {
			m.updateClipPlanes(near, far)
		})
	}

	handle.SetEndHandler(m.deviceEnded)
	handle.SetVisibilityHandler(func(state xr.VisibilityState) {
		m.emit(Event{Type: EventVisibilityChanged, Visibility: state})
	})

	m.mu.Lock()
	m.sess = sess
	m.clipCancel = clipCancel
	m.intrinsicsPushed = false
	m.surfaceLost = false
	m.state = StateRunning
	m.mu.Unlock()

	m.logState(StateStarting, StateRunning, mode, "session established")
	m.logger.Info("session started", "sessionID", sessionID, "mode", mode.String(), "granted", len(sess.granted))
	m.emit(Event{Type: EventStarted, Mode: mode})
	return nil
}

// End terminates the active session. Returns ErrSessionNotEstablished while
// negotiation is still in flight and ErrNotRunning when no session exists.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateIdle, StateEnding:
		m.mu.Unlock()
		return ErrNotRunning
	case StateStarting:
		m.mu.Unlock()
		return ErrSessionNotEstablished
	}
	m.state = StateEnding
	m.mu.Unlock()

	m.logState(StateRunning, StateEnding, m.currentMode(), "end requested")
	return m.teardown(ctx, true, "end requested")
}

// deviceEnded handles the device-initiated end notification.
func (m *Manager) deviceEnded(reason string) {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.state = StateEnding
	m.mu.Unlock()

	m.logState(StateRunning, StateEnding, m.currentMode(), reason)
	m.teardown(context.Background(), false, reason)
}

// teardown clears the session in a fixed order: clip listener, camera,
// hit-test source, subsystems, anchor binding, device handle, surface,
// reference space, cached dimensions, negotiated mode/space. Only after all
// fields are cleared does the Ended event fire, exactly once per session.
func (m *Manager) teardown(ctx context.Context, endDevice bool, reason string) error {
	m.mu.Lock()
	sess := m.sess
	clipCancel := m.clipCancel
	m.clipCancel = nil
	m.mu.Unlock()

	if clipCancel != nil {
		clipCancel()
	}

	var mode xr.SessionMode
	var handle xr.SessionHandle
	var surface xr.Surface
	if sess != nil {
		mode = sess.mode
		handle = sess.handle
		surface = sess.surface
		sess.camera = nil
	}

	if source := m.hitTester.Source(); source != nil {
		source.Cancel()
		m.hitTester.BindSource(nil)
	}
	for _, s := range m.subsystems {
		s.SetAvailable(false)
	}
	m.anchorTracker.BindSession(nil)

	var endErr error
	if endDevice && handle != nil {
		if err := handle.End(ctx); err != nil {
			endErr = fmt.Errorf("end session: %w", err)
			m.logger.Warn("device end failed", "error", err)
			m.emit(Event{Type: EventError, Err: endErr})
		}
	}

	if surface != nil {
		surface.Destroy()
	}

	if sess != nil {
		sess.handle = nil
		sess.surface = nil
		sess.refSpace = nil
		sess.width, sess.height = 0, 0
		sess.granted = nil
	}

	m.mu.Lock()
	m.sess = nil
	m.intrinsicsPushed = false
	m.surfaceLost = false
	sessionID := m.sessionID
	m.state = StateIdle
	m.mu.Unlock()

	m.logger.Info("session ended", "sessionID", sessionID, "reason", reason)
	m.logState(StateEnding, StateIdle, mode, reason)

	m.mu.Lock()
	m.sessionID = ""
	m.mu.Unlock()

	m.emit(Event{Type: EventEnded, Mode: mode, Reason: reason})
	return endErr
}

// OnFrame processes one hardware frame. A no-op unless Running. A missing
// viewer pose is a normal transient condition and silently skips the rest of
// the frame.
func (m *Manager) OnFrame(frame xr.Frame) {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	sess := m.sess
	surfaceLost := m.surfaceLost
	pushIntrinsics := !m.intrinsicsPushed
	m.mu.Unlock()

	if !surfaceLost && sess.surface != nil {
		m.propagateResolution(sess)
	}

	pose, ok := frame.ViewerPose(sess.refSpace)
	if !ok {
		m.logFrame(frame.Number(), log.FrameStatsEvent{PoseAvailable: false})
		return
	}

	m.handlerMu.Lock()
	viewsHandler := m.viewsHandler
	inputHandler := m.inputHandler
	m.handlerMu.Unlock()

	if viewsHandler != nil {
		viewsHandler(pose)
	}

	if pushIntrinsics && sess.camera != nil && len(pose.Views) > 0 {
		sess.camera.SetIntrinsics(deriveIntrinsics(pose.Views[0], sess.nearClip, sess.farClip))
		m.mu.Lock()
		m.intrinsicsPushed = true
		m.mu.Unlock()
	}

	if sess.camera != nil {
		sess.camera.SetSessionTransform(pose.Pose)
	}

	if inputHandler != nil {
		inputHandler(frame)
	}

	var subsystemsRun int
	var dispatchTime time.Duration
	if sess.mode == xr.ModeImmersiveAR {
		start := time.Now()
		for _, s := range m.subsystems {
			if err := s.Update(frame); err != nil {
				// One subsystem's failure never blocks the others.
				m.logger.Warn("subsystem update failed", "feature", string(s.Feature()), "error", err)
				m.emit(Event{Type: EventError, Feature: s.Feature(), Err: err})
			}
			subsystemsRun++
		}
		dispatchTime = time.Since(start)
	}

	m.logFrame(frame.Number(), log.FrameStatsEvent{
		ViewCount:     len(pose.Views),
		PoseAvailable: true,
		SubsystemsRun: subsystemsRun,
		DispatchTime:  dispatchTime,
	})
	m.emit(Event{Type: EventFrame, Frame: frame})
}

// HandleDeviceLost tears down the drawable surface without ending the
// session. Rendering pauses until HandleDeviceRestored succeeds.
func (m *Manager) HandleDeviceLost() {
	m.mu.Lock()
	if m.state != StateRunning || m.surfaceLost {
		m.mu.Unlock()
		return
	}
	m.surfaceLost = true
	sess := m.sess
	surface := sess.surface
	sess.surface = nil
	m.mu.Unlock()

	if surface != nil {
		surface.Destroy()
	}
	m.logger.Warn("device lost", "sessionID", sess.id)
	m.emit(Event{Type: EventDeviceLost})
}

// HandleDeviceRestored rebuilds the drawable surface after device loss. On
// failure the error is reported but the session is not ended; a later retry
// may succeed.
func (m *Manager) HandleDeviceRestored(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateRunning || !m.surfaceLost {
		m.mu.Unlock()
		return ErrNotRunning
	}
	sess := m.sess
	m.mu.Unlock()

	surface, err := m.config.SurfaceFactory.CreateSurface(ctx, sess.handle, m.config.ScaleFactor)
	if err != nil {
		err = fmt.Errorf("restore surface: %w", err)
		m.emit(Event{Type: EventError, Err: err})
		return err
	}
	if err := sess.handle.UpdateRenderState(xr.RenderState{
		Surface:  surface,
		NearClip: sess.nearClip,
		FarClip:  sess.farClip,
	}); err != nil {
		surface.Destroy()
		err = fmt.Errorf("restore render state: %w", err)
		m.emit(Event{Type: EventError, Err: err})
		return err
	}

	m.mu.Lock()
	sess.surface = surface
	sess.width, sess.height = 0, 0
	m.surfaceLost = false
	m.mu.Unlock()

	m.logger.Info("device restored", "sessionID", sess.id)
	m.emit(Event{Type: EventDeviceRestored})
	return nil
}

// Active reports whether a session is running.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateRunning
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentSession returns a snapshot of the active session, or nil.
func (m *Manager) CurrentSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return nil
	}
	return m.sess.snapshot()
}

// OnEvent registers an event handler. Handlers are invoked synchronously in
// registration order.
func (m *Manager) OnEvent(handler EventHandler) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.eventHandlers = append(m.eventHandlers, handler)
}

// SetViewsHandler sets the per-frame views observer.
func (m *Manager) SetViewsHandler(fn func(pose xr.ViewerPose)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.viewsHandler = fn
}

// SetInputHandler sets the per-frame input dispatch observer.
func (m *Manager) SetInputHandler(fn func(frame xr.Frame)) {
	m.handlerMu.Lock()
	defer m.handlerMu.Unlock()
	m.inputHandler = fn
}

// Subsystem accessors.

// HitTester returns the hit-test subsystem.
func (m *Manager) HitTester() *detection.HitTester { return m.hitTester }

// LightEstimator returns the light-estimation subsystem.
func (m *Manager) LightEstimator() *detection.LightEstimator { return m.lightEstimator }

// ImageTracker returns the image-tracking subsystem.
func (m *Manager) ImageTracker() *detection.ImageTracker { return m.imageTracker }

// AnchorTracker returns the anchor subsystem.
func (m *Manager) AnchorTracker() *detection.AnchorTracker { return m.anchorTracker }

// PlaneDetector returns the plane-detection subsystem.
func (m *Manager) PlaneDetector() *detection.PlaneDetector { return m.planeDetector }

// DepthSensor returns the depth-sensing subsystem.
func (m *Manager) DepthSensor() *detection.DepthSensor { return m.depthSensor }

// MeshDetector returns the mesh-detection subsystem.
func (m *Manager) MeshDetector() *detection.MeshDetector { return m.meshDetector }

// featureSupported reports whether a detection subsystem backs the feature.
func (m *Manager) featureSupported(f xr.Feature) bool {
	for _, s := range m.subsystems {
		if s.Feature() == f {
			return s.Supported()
		}
	}
	// Features without a subsystem (camera access, extra optional names)
	// are gated by the configured support list alone.
	for _, v := range m.config.SupportedFeatures {
		if v == f {
			return true
		}
	}
	return false
}

// failStart collapses Starting back to Idle and delivers the error to both
// the caller and the event observers.
func (m *Manager) failStart(mode xr.SessionMode, err error) error {
	m.mu.Lock()
	sessionID := m.sessionID
	m.sessionID = ""
	m.state = StateIdle
	m.mu.Unlock()

	m.logger.Warn("session start failed", "sessionID", sessionID, "mode", mode.String(), "error", err)
	m.logState(StateStarting, StateIdle, mode, err.Error())
	m.emit(Event{Type: EventError, Mode: mode, Err: err})
	return err
}

// endDangling ends a granted session after a later acquisition step failed.
func (m *Manager) endDangling(ctx context.Context, handle xr.SessionHandle) {
	if err := handle.End(ctx); err != nil {
		m.logger.Warn("ending partially started session failed", "error", err)
	}
}

// updateClipPlanes re-issues the render state when the camera's clip planes
// change mid-session.
func (m *Manager) updateClipPlanes(near, far float64) {
	m.mu.Lock()
	sess := m.sess
	if m.state != StateRunning || sess == nil || sess.surface == nil {
		m.mu.Unlock()
		return
	}
	sess.nearClip = near
	sess.farClip = far
	handle := sess.handle
	surface := sess.surface
	m.mu.Unlock()

	if err := handle.UpdateRenderState(xr.RenderState{Surface: surface, NearClip: near, FarClip: far}); err != nil {
		m.logger.Warn("clip plane update failed", "error", err)
		m.emit(Event{Type: EventError, Err: err})
	}
}

// propagateResolution pushes a drawable size change to the surface.
func (m *Manager) propagateResolution(sess *Session) {
	res := sess.surface.Resolution()
	if res.Width == sess.width && res.Height == sess.height {
		return
	}
	if err := sess.surface.Resize(res); err != nil {
		m.logger.Warn("surface resize failed", "error", err)
		m.emit(Event{Type: EventError, Err: err})
		return
	}
	m.mu.Lock()
	sess.width, sess.height = res.Width, res.Height
	m.mu.Unlock()
}

// emit delivers an event to all registered handlers.
func (m *Manager) emit(evt Event) {
	m.handlerMu.Lock()
	handlers := make([]EventHandler, len(m.eventHandlers))
	copy(handlers, m.eventHandlers)
	m.handlerMu.Unlock()

	for _, h := range handlers {
		h(evt)
	}
}

// currentMode returns the active session's mode, or ModeInline when none.
func (m *Manager) currentMode() xr.SessionMode {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return xr.ModeInline
	}
	return m.sess.mode
}

// logState records a lifecycle transition in the event log.
func (m *Manager) logState(oldState, newState State, mode xr.SessionMode, reason string) {
	m.mu.Lock()
	sessionID := m.sessionID
	m.mu.Unlock()

	m.eventLogger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Category:  log.CategoryState,
		Mode:      mode.String(),
		State: &log.StateChangeEvent{
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

// logFrame records per-frame statistics in the event log.
func (m *Manager) logFrame(frame uint64, stats log.FrameStatsEvent) {
	m.mu.Lock()
	sessionID := m.sessionID
	m.mu.Unlock()

	m.eventLogger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Frame:      frame,
		Category:   log.CategoryFrame,
		FrameStats: &stats,
	})
}

// deriveIntrinsics computes camera projection properties from the first
// rendered view's projection data.
func deriveIntrinsics(v xr.View, near, far float64) xr.Intrinsics {
	fov := v.Projection.AngleUp + v.Projection.AngleDown
	aspect := 0.0
	switch {
	case v.Viewport.Height > 0:
		aspect = float64(v.Viewport.Width) / float64(v.Viewport.Height)
	case fov > 0:
		aspect = (v.Projection.AngleLeft + v.Projection.AngleRight) / fov
	}
	return xr.Intrinsics{
		AspectRatio: aspect,
		FieldOfView: fov,
		Near:        near,
		Far:         far,
	}
}
