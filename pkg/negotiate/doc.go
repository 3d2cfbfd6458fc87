// Package negotiate builds the capability request issued when opening a
// session.
//
// The negotiator merges three inputs into one immutable xr.FeatureRequest:
// the static requirement (the reference space type), the caller's options,
// and each detection subsystem's self-reported support. AR sessions always
// request hit-test and light-estimation as best-effort optional features;
// everything else is added only when both requested and supported.
//
// Image tracking is the one negotiation step that can fail independently of
// the device API: every registered reference image is decoded to a
// renderable bitmap before the request may be issued, and any decode failure
// short-circuits negotiation. Decoded bitmaps are cached per source so
// repeated negotiation does not redecode.
package negotiate
