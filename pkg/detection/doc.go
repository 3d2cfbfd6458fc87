// Package detection implements the detection subsystems that surface
// incrementally-discovered real-world entities during a session.
//
// Each subsystem wraps a reconcile.Reconciler for its entity type (planes,
// meshes, image targets, anchors, hit-test results) or holds a single
// per-frame snapshot (light estimation, depth). A subsystem only processes
// frames while it is both supported (the host API surface exists, fixed at
// construction) and available (the current session negotiated its feature).
//
// # Lifecycle
//
// Session start marks negotiated subsystems available. Session end marks
// them unavailable, which force-removes every held entity (each firing its
// own remove event) before the subsystem-level unavailable observer fires.
// Consumers never observe entities surviving past session end.
//
// # Error isolation
//
// Update never panics into the frame loop. Subsystem-local errors are
// reported through the configured ErrorFunc and the event logger, and the
// returned error is advisory; the session manager keeps dispatching the
// remaining subsystems.
package detection
