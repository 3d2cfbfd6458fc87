package xr

// SessionMode selects the kind of session requested from the device.
type SessionMode uint8

const (
	// ModeInline - non-immersive, rendered into the regular view.
	ModeInline SessionMode = iota

	// ModeImmersiveVR - fully immersive, no camera passthrough.
	ModeImmersiveVR

	// ModeImmersiveAR - immersive with real-world passthrough and
	// detection features.
	ModeImmersiveAR
)

// String returns the mode name as sent to the device API.
func (m SessionMode) String() string {
	switch m {
	case ModeInline:
		return "inline"
	case ModeImmersiveVR:
		return "immersive-vr"
	case ModeImmersiveAR:
		return "immersive-ar"
	default:
		return "unknown"
	}
}

// ReferenceSpaceType identifies the coordinate frame poses are expressed in.
type ReferenceSpaceType string

const (
	ReferenceSpaceViewer       ReferenceSpaceType = "viewer"
	ReferenceSpaceLocal        ReferenceSpaceType = "local"
	ReferenceSpaceLocalFloor   ReferenceSpaceType = "local-floor"
	ReferenceSpaceBoundedFloor ReferenceSpaceType = "bounded-floor"
	ReferenceSpaceUnbounded    ReferenceSpaceType = "unbounded"
)

// VisibilityState reports whether session content is presented to the user.
type VisibilityState string

const (
	VisibilityVisible        VisibilityState = "visible"
	VisibilityVisibleBlurred VisibilityState = "visible-blurred"
	VisibilityHidden         VisibilityState = "hidden"
)

// Vector3 is an opaque position value. No math is defined here.
type Vector3 struct {
	X, Y, Z float64
}

// Quaternion is an opaque orientation value.
type Quaternion struct {
	X, Y, Z, W float64
}

// Pose is a position+orientation sample for the viewer or a tracked entity.
type Pose struct {
	Position    Vector3
	Orientation Quaternion
}

// FieldOfView holds the four half-angles of a view's projection, in radians.
type FieldOfView struct {
	AngleLeft  float64
	AngleRight float64
	AngleUp    float64
	AngleDown  float64
}

// Viewport is a drawable resolution in pixels.
type Viewport struct {
	Width  int
	Height int
}

// Eye identifies which eye a view renders.
type Eye string

const (
	EyeNone  Eye = "none"
	EyeLeft  Eye = "left"
	EyeRight Eye = "right"
)

// View is one eye's worth of per-frame rendering data.
type View struct {
	Eye        Eye
	Pose       Pose
	Projection FieldOfView
	Viewport   Viewport
}

// ViewerPose is the tracked head pose plus the views derived from it.
type ViewerPose struct {
	Pose  Pose
	Views []View
}

// Intrinsics carries camera projection properties derived from the first
// rendered view. Pushed to the camera collaborator at most once per session.
type Intrinsics struct {
	AspectRatio   float64
	FieldOfView   float64
	Near          float64
	Far           float64
	HorizontalFOV bool
}

// RenderState is the drawable configuration handed to the session.
type RenderState struct {
	Surface  Surface
	NearClip float64
	FarClip  float64
}

// ReferenceImage is a raw image registered for image tracking, with its
// expected physical width.
type ReferenceImage struct {
	// Data is the encoded image bytes. Used as the cache key for decoding.
	Data []byte

	// WidthInMeters is the expected physical width of the target.
	WidthInMeters float64
}

// Bitmap is a decoded reference image ready for the device.
type Bitmap interface {
	// Bounds returns the decoded pixel dimensions.
	Bounds() Viewport
}

// TrackedImageInit pairs a decoded bitmap with its physical width, as sent
// in a FeatureRequest.
type TrackedImageInit struct {
	Bitmap        Bitmap
	WidthInMeters float64
}

// DepthUsage selects where depth data is consumed.
type DepthUsage string

const (
	DepthUsageCPU DepthUsage = "cpu-optimized"
	DepthUsageGPU DepthUsage = "gpu-optimized"
)

// DepthFormat selects the depth buffer data format.
type DepthFormat string

const (
	DepthFormatLuminanceAlpha DepthFormat = "luminance-alpha"
	DepthFormatFloat32        DepthFormat = "float32"
)
