// Package simulate provides an in-process simulated XR device.
//
// SimDevice implements the host-side collaborator contracts (device, session
// handle, surface factory, image decoder) against in-memory state, so a full
// session lifecycle can be driven without hardware. Detected-entity
// enumerations are set explicitly per frame, either through the setter API
// (interactive use) or from a YAML scenario played back frame by frame.
//
// The simulator is used by cmd/xr-sim and by integration-style tests.
package simulate
