package negotiate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Negotiation errors.
var (
	ErrNilDecoder = errors.New("image tracking requires an image decoder")
)

// DepthSensingOptions carries the caller's depth-sensing preferences.
// Preferences reorder the fixed default lists; they never filter them, so
// the device retains a fallback order.
type DepthSensingOptions struct {
	UsagePreference      xr.DepthUsage
	DataFormatPreference xr.DepthFormat
}

// Options is the caller-supplied feature selection for a session.
type Options struct {
	// Optional detection features. Each is added to the request only if
	// the corresponding subsystem reports support.
	Anchors        bool
	ImageTracking  bool
	PlaneDetection bool
	MeshDetection  bool

	// CameraColor requests raw camera access.
	CameraColor bool

	// DepthSensing enables depth sensing with the given preferences.
	DepthSensing *DepthSensingOptions

	// ReferenceImages are the image targets for image tracking. Image
	// tracking is only negotiated when at least one image is registered.
	ReferenceImages []xr.ReferenceImage

	// OptionalFeatures are extra feature names appended verbatim to the
	// optional set (deduplicated).
	OptionalFeatures []xr.Feature
}

// Default preference orders. Caller preferences are moved to the front.
var (
	defaultDepthUsage  = []xr.DepthUsage{xr.DepthUsageCPU, xr.DepthUsageGPU}
	defaultDepthFormat = []xr.DepthFormat{xr.DepthFormatLuminanceAlpha, xr.DepthFormatFloat32}
)

// Negotiator assembles feature requests. It caches decoded reference images
// per source, keyed by the raw image bytes.
type Negotiator struct {
	mu      sync.Mutex
	decoder xr.ImageDecoder
	cache   map[string]xr.Bitmap
}

// NewNegotiator creates a negotiator. decoder may be nil if image tracking
// is never used.
func NewNegotiator(decoder xr.ImageDecoder) *Negotiator {
	return &Negotiator{
		decoder: decoder,
		cache:   make(map[string]xr.Bitmap),
	}
}

// Build assembles the feature request for a session. supported reports
// whether the subsystem behind a feature exists on this host; features whose
// subsystem is unsupported are silently omitted from the request.
//
// Build is the only negotiation step that can fail before the device sees
// the request: a reference-image decode error short-circuits with no request
// issued.
func (n *Negotiator) Build(
	ctx context.Context,
	mode xr.SessionMode,
	refSpace xr.ReferenceSpaceType,
	opts Options,
	supported func(xr.Feature) bool,
) (*xr.FeatureRequest, error) {
	if supported == nil {
		supported = func(xr.Feature) bool { return false }
	}

	params := xr.FeatureRequestParams{
		Required: []xr.Feature{xr.Feature(refSpace)},
	}

	// AR sessions always ask for these; the device grants what it can.
	if mode == xr.ModeImmersiveAR {
		params.Optional = append(params.Optional, xr.FeatureHitTest, xr.FeatureLightEstimation)
	}

	if opts.Anchors && supported(xr.FeatureAnchors) {
		params.Optional = append(params.Optional, xr.FeatureAnchors)
	}

	if opts.ImageTracking && supported(xr.FeatureImageTracking) && len(opts.ReferenceImages) > 0 {
		images, err := n.decodeImages(ctx, opts.ReferenceImages)
		if err != nil {
			return nil, err
		}
		params.Optional = append(params.Optional, xr.FeatureImageTracking)
		params.TrackedImages = images
	}

	if opts.PlaneDetection && supported(xr.FeaturePlaneDetection) {
		params.Optional = append(params.Optional, xr.FeaturePlaneDetection)
	}

	if opts.MeshDetection && supported(xr.FeatureMeshDetection) {
		params.Optional = append(params.Optional, xr.FeatureMeshDetection)
	}

	if opts.DepthSensing != nil && supported(xr.FeatureDepthSensing) {
		params.Optional = append(params.Optional, xr.FeatureDepthSensing)
		params.DepthUsagePreference = moveToFront(defaultDepthUsage, opts.DepthSensing.UsagePreference)
		params.DepthFormatPreference = moveToFront(defaultDepthFormat, opts.DepthSensing.DataFormatPreference)
	}

	if opts.CameraColor && supported(xr.FeatureCameraAccess) {
		params.Optional = append(params.Optional, xr.FeatureCameraAccess)
	}

	for _, f := range opts.OptionalFeatures {
		if !containsFeature(params.Required, f) && !containsFeature(params.Optional, f) {
			params.Optional = append(params.Optional, f)
		}
	}

	return xr.NewFeatureRequest(params), nil
}

// decodeImages decodes every reference image, reusing cached bitmaps.
// The first failure aborts the whole negotiation.
func (n *Negotiator) decodeImages(ctx context.Context, images []xr.ReferenceImage) ([]xr.TrackedImageInit, error) {
	if n.decoder == nil {
		return nil, ErrNilDecoder
	}

	out := make([]xr.TrackedImageInit, 0, len(images))
	for i, img := range images {
		key := string(img.Data)

		n.mu.Lock()
		bitmap, ok := n.cache[key]
		n.mu.Unlock()

		if !ok {
			var err error
			bitmap, err = n.decoder.Decode(ctx, img)
			if err != nil {
				return nil, fmt.Errorf("decode reference image %d: %w", i, err)
			}
			n.mu.Lock()
			n.cache[key] = bitmap
			n.mu.Unlock()
		}

		out = append(out, xr.TrackedImageInit{
			Bitmap:        bitmap,
			WidthInMeters: img.WidthInMeters,
		})
	}
	return out, nil
}

// moveToFront returns defaults with pref moved to the front. The remaining
// entries keep their order as fallbacks; no duplicates are created. An
// unknown or zero pref leaves the defaults untouched.
func moveToFront[T comparable](defaults []T, pref T) []T {
	out := make([]T, 0, len(defaults))
	found := false
	for _, v := range defaults {
		if v == pref {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		return append([]T(nil), defaults...)
	}
	return append([]T{pref}, out...)
}

func containsFeature(list []xr.Feature, f xr.Feature) bool {
	for _, v := range list {
		if v == f {
			return true
		}
	}
	return false
}
