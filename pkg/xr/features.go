package xr

// Feature is a capability name negotiated when opening a session.
type Feature string

// Feature names as understood by the device API. Reference space types are
// valid features too; the negotiator always places the requested reference
// space in the required set.
const (
	FeatureViewer          Feature = "viewer"
	FeatureLocal           Feature = "local"
	FeatureLocalFloor      Feature = "local-floor"
	FeatureBoundedFloor    Feature = "bounded-floor"
	FeatureUnbounded       Feature = "unbounded"
	FeatureHitTest         Feature = "hit-test"
	FeatureLightEstimation Feature = "light-estimation"
	FeatureAnchors         Feature = "anchors"
	FeatureImageTracking   Feature = "image-tracking"
	FeaturePlaneDetection  Feature = "plane-detection"
	FeatureMeshDetection   Feature = "mesh-detection"
	FeatureDepthSensing    Feature = "depth-sensing"
	FeatureCameraAccess    Feature = "camera-access"
)

// FeatureRequestParams carries the inputs for building a FeatureRequest.
// Slices are deep-copied by NewFeatureRequest.
type FeatureRequestParams struct {
	Required []Feature
	Optional []Feature

	// TrackedImages are pre-decoded reference images, present only when
	// image tracking was negotiated.
	TrackedImages []TrackedImageInit

	// Depth preference lists, in fallback order. Present only when depth
	// sensing was negotiated.
	DepthUsagePreference  []DepthUsage
	DepthFormatPreference []DepthFormat
}

// FeatureRequest is the negotiated set of required/optional capabilities
// sent to the device when requesting a session. It is immutable once built;
// accessors return copies.
type FeatureRequest struct {
	required      []Feature
	optional      []Feature
	trackedImages []TrackedImageInit
	depthUsage    []DepthUsage
	depthFormat   []DepthFormat
}

// NewFeatureRequest builds an immutable FeatureRequest from params.
func NewFeatureRequest(p FeatureRequestParams) *FeatureRequest {
	return &FeatureRequest{
		required:      append([]Feature(nil), p.Required...),
		optional:      append([]Feature(nil), p.Optional...),
		trackedImages: append([]TrackedImageInit(nil), p.TrackedImages...),
		depthUsage:    append([]DepthUsage(nil), p.DepthUsagePreference...),
		depthFormat:   append([]DepthFormat(nil), p.DepthFormatPreference...),
	}
}

// Required returns the required feature list.
func (r *FeatureRequest) Required() []Feature {
	return append([]Feature(nil), r.required...)
}

// Optional returns the optional feature list.
func (r *FeatureRequest) Optional() []Feature {
	return append([]Feature(nil), r.optional...)
}

// TrackedImages returns the pre-decoded reference images.
func (r *FeatureRequest) TrackedImages() []TrackedImageInit {
	return append([]TrackedImageInit(nil), r.trackedImages...)
}

// DepthUsagePreference returns the depth usage fallback order.
func (r *FeatureRequest) DepthUsagePreference() []DepthUsage {
	return append([]DepthUsage(nil), r.depthUsage...)
}

// DepthFormatPreference returns the depth format fallback order.
func (r *FeatureRequest) DepthFormatPreference() []DepthFormat {
	return append([]DepthFormat(nil), r.depthFormat...)
}

// Requests reports whether f appears in the required or optional set.
func (r *FeatureRequest) Requests(f Feature) bool {
	for _, v := range r.required {
		if v == f {
			return true
		}
	}
	for _, v := range r.optional {
		if v == f {
			return true
		}
	}
	return false
}
