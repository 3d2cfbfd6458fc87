package xr

import "context"

// Device is the host XR runtime's session API. Implementations must deliver
// exactly one of value/error per call.
type Device interface {
	// SessionSupported reports whether the device can open a session of
	// the given mode right now.
	SessionSupported(mode SessionMode) bool

	// RequestSession asks the device to grant a session. The request is
	// immutable once issued. On success the caller owns the handle and
	// must End it.
	RequestSession(ctx context.Context, mode SessionMode, req *FeatureRequest) (SessionHandle, error)
}

// SessionHandle is a granted device session.
type SessionHandle interface {
	// RequestReferenceSpace acquires the coordinate frame poses are
	// expressed against.
	RequestReferenceSpace(ctx context.Context, t ReferenceSpaceType) (ReferenceSpace, error)

	// UpdateRenderState binds the drawable surface and clip planes.
	UpdateRenderState(state RenderState) error

	// GrantedFeatures returns the features the device actually granted.
	// May be a subset of the optional features requested.
	GrantedFeatures() []Feature

	// RequestHitTestSource registers a viewer-space hit-test ray.
	RequestHitTestSource(ctx context.Context, offset Pose) (HitTestSource, error)

	// PersistAnchor asks the device to persist an anchor across sessions,
	// returning its persistent name.
	PersistAnchor(ctx context.Context, id AnchorID) (string, error)

	// RestorePersistentAnchor re-creates a previously persisted anchor in
	// this session.
	RestorePersistentAnchor(ctx context.Context, name string) (AnchorID, error)

	// SetEndHandler registers the device-initiated end notification
	// (e.g. the user removed the headset). Fires at most once.
	SetEndHandler(fn func(reason string))

	// SetVisibilityHandler registers visibility change notifications.
	SetVisibilityHandler(fn func(state VisibilityState))

	// End terminates the session on the device side.
	End(ctx context.Context) error
}

// ReferenceSpace is an opaque coordinate frame handle.
type ReferenceSpace interface {
	Type() ReferenceSpaceType
}

// HitTestSource is a registered hit-test ray. Cancel releases it.
type HitTestSource interface {
	Cancel()
}

// Identity types assigned by the device. An identity is never reused across
// add/remove cycles within one session.
type (
	PlaneID  string
	MeshID   string
	AnchorID string
	HitID    string
)

// PlaneOrientation classifies a detected plane.
type PlaneOrientation string

const (
	PlaneHorizontal PlaneOrientation = "horizontal"
	PlaneVertical   PlaneOrientation = "vertical"
)

// PlaneSample is one frame's device report for a detected plane.
type PlaneSample struct {
	ID          PlaneID
	Pose        Pose
	Polygon     []Vector3
	Orientation PlaneOrientation
	LastChanged uint64
}

// MeshSample is one frame's device report for a detected mesh.
type MeshSample struct {
	ID          MeshID
	Pose        Pose
	Vertices    []Vector3
	Indices     []uint32
	Label       string
	LastChanged uint64
}

// ImageTrackingState is the tracking confidence for an image target.
type ImageTrackingState string

const (
	// ImageTracked - the target is actively tracked.
	ImageTracked ImageTrackingState = "tracked"

	// ImageEmulated - the target is out of view; the pose is extrapolated.
	ImageEmulated ImageTrackingState = "emulated"
)

// ImageSample is one frame's device report for a tracked image target.
// Index refers to the registered reference image.
type ImageSample struct {
	Index         int
	Pose          Pose
	State         ImageTrackingState
	MeasuredWidth float64
}

// AnchorSample is one frame's device report for a tracked anchor.
type AnchorSample struct {
	ID   AnchorID
	Pose Pose
}

// HitSample is one frame's hit-test result for a registered source.
type HitSample struct {
	ID   HitID
	Pose Pose
}

// LightEstimate is the device's current ambient light probe.
type LightEstimate struct {
	PrimaryLightDirection Vector3
	PrimaryLightIntensity Vector3
	SphericalHarmonics    []float32
}

// DepthInfo is one frame's depth buffer for a view.
type DepthInfo struct {
	Width            int
	Height           int
	RawValueToMeters float64
	Data             []byte
}

// Frame is one hardware tick of tracking data. All accessors are valid only
// for the duration of the frame callback.
type Frame interface {
	// Number is the monotonically increasing frame counter.
	Number() uint64

	// ViewerPose computes the viewer pose against the reference space.
	// ok is false when tracking is transiently unavailable; this is not
	// an error.
	ViewerPose(space ReferenceSpace) (pose ViewerPose, ok bool)

	// Detection enumerations. Each returns the complete live set for this
	// frame; absence from the set means the entity is gone.
	DetectedPlanes() []PlaneSample
	DetectedMeshes() []MeshSample
	ImageTrackingResults() []ImageSample
	TrackedAnchors() []AnchorSample
	HitTestResults(source HitTestSource) []HitSample

	// LightEstimate returns the current light probe, if the feature was
	// granted and a probe is ready.
	LightEstimate() (LightEstimate, bool)

	// DepthInformation returns this frame's depth buffer, if available.
	DepthInformation() (DepthInfo, bool)

	// CreateAnchor asks the device to create an anchor at the given pose.
	// The anchor appears in TrackedAnchors on a subsequent frame.
	CreateAnchor(pose Pose) (AnchorID, error)
}

// Surface is a drawable rendering surface bound to a session.
type Surface interface {
	// Resolution returns the current drawable size in pixels.
	Resolution() Viewport

	// Resize propagates a resolution change to the rendering backend.
	Resize(v Viewport) error

	// Destroy releases the surface. Safe to call once.
	Destroy()
}

// SurfaceFactory constructs drawable surfaces. Construction is a black box;
// the scale factor is derived from the device pixel ratio by the caller.
type SurfaceFactory interface {
	CreateSurface(ctx context.Context, session SessionHandle, scaleFactor float64) (Surface, error)
}

// Camera is the rendering camera bound to a session.
type Camera interface {
	// SetSessionTransform applies the computed viewer pose to the
	// camera's transform node.
	SetSessionTransform(pose Pose)

	// SetIntrinsics applies projection properties derived from the first
	// rendered view.
	SetIntrinsics(i Intrinsics)

	// ClipPlanes returns the camera's current near/far clip distances.
	ClipPlanes() (near, far float64)

	// OnClipChanged registers a near/far change listener and returns a
	// function that detaches it.
	OnClipChanged(fn func(near, far float64)) (cancel func())
}

// ImageDecoder decodes a registered reference image to a device-renderable
// bitmap. Decoding may fail independently of the device API.
type ImageDecoder interface {
	Decode(ctx context.Context, img ReferenceImage) (Bitmap, error)
}
