// Package session owns the lifecycle of an immersive device session.
//
// # Manager
//
// Manager is the single source of truth for whether a session is active. It
// drives the state machine
//
//	Idle -> Starting -> Running -> Ending -> Idle
//
// where Starting collapses back to Idle on any negotiation or acquisition
// failure, with no session left dangling on the device. It handles:
//   - feature negotiation (via pkg/negotiate) and session requests
//   - reference-space acquisition and drawable-surface construction
//   - the per-frame update dispatch to the detection subsystems
//   - device-initiated end, device loss and restore
//
// Example usage:
//
//	config := session.DefaultConfig()
//	config.Device = device
//	config.SurfaceFactory = surfaces
//
//	mgr, err := session.NewManager(config)
//	err = mgr.Start(ctx, camera, xr.ModeImmersiveAR, xr.ReferenceSpaceLocalFloor, negotiate.Options{
//		PlaneDetection: true,
//	})
//	defer mgr.End(ctx)
//
//	// from the host's frame callback:
//	mgr.OnFrame(frame)
//
// # Frame dispatch
//
// While running, each hardware frame flows through a fixed sequence:
// resolution propagation, viewer pose (a missing pose silently skips the
// rest of the frame), view dispatch, a one-shot camera intrinsics push,
// camera transform, input dispatch, detection subsystem fan-out (AR only,
// in a fixed documented order, one subsystem's failure never blocking the
// others), and finally a frame notification carrying the raw frame.
//
// # Event callbacks
//
// The manager emits typed events for state changes:
//   - Started/Ended: lifecycle edges (Ended fires exactly once per session)
//   - DeviceLost/DeviceRestored: drawable surface loss without session end
//   - VisibilityChanged: device visibility notifications
//   - SubsystemUnavailable: a detection subsystem deactivated
//   - Error: any failure, also delivered to the failing caller
package session
