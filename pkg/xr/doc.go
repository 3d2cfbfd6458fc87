// Package xr defines the contracts between the session orchestration core
// and the host XR runtime.
//
// The core never reaches a process-wide device handle. Every host capability
// (device API, drawable-surface factory, camera, image decoder) is an
// interface defined here and injected into the components that need it, so
// tests can substitute fakes (see pkg/simulate).
//
// # Value types
//
// Vector3, Quaternion, Pose and friends are opaque value types with plain
// copy semantics. This package deliberately defines no geometry math; the
// rendering side owns projection and transform computation.
//
// # Collaborators
//
//   - Device: session availability checks and session requests
//   - SessionHandle: a granted session (reference spaces, render state, end)
//   - Frame: one hardware tick of tracking data and detection enumerations
//   - SurfaceFactory: black-box drawable surface construction
//   - Camera: the rendering camera bound to a session
//   - ImageDecoder: reference-image pre-processing for image tracking
//
// All blocking collaborator calls take a context.Context and resolve exactly
// once with a value or an error.
package xr
