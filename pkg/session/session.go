package session

import (
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Session is the manager's record of one granted device session. At most one
// exists at a time; it is exclusively owned and mutated by the Manager, and
// all fields are cleared in a fixed order on end before the Ended event
// fires. CurrentSession returns copies, so a held *Session never observes a
// half-torn-down state.
type Session struct {
	id       string
	mode     xr.SessionMode
	refType  xr.ReferenceSpaceType
	granted  []xr.Feature
	handle   xr.SessionHandle
	refSpace xr.ReferenceSpace
	surface  xr.Surface
	camera   xr.Camera
	nearClip float64
	farClip  float64
	width    int
	height   int
}

// ID returns the unique session lifecycle identifier.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the negotiated session mode.
func (s *Session) Mode() xr.SessionMode {
	return s.mode
}

// ReferenceSpaceType returns the negotiated reference space type.
func (s *Session) ReferenceSpaceType() xr.ReferenceSpaceType {
	return s.refType
}

// GrantedFeatures returns the features the device granted.
func (s *Session) GrantedFeatures() []xr.Feature {
	return append([]xr.Feature(nil), s.granted...)
}

// Granted reports whether the device granted the given feature.
func (s *Session) Granted(f xr.Feature) bool {
	for _, v := range s.granted {
		if v == f {
			return true
		}
	}
	return false
}

// Surface returns the drawable surface. Nil while the device is lost.
func (s *Session) Surface() xr.Surface {
	return s.surface
}

// Camera returns the bound rendering camera.
func (s *Session) Camera() xr.Camera {
	return s.camera
}

// ClipPlanes returns the near/far clip distances currently in effect.
func (s *Session) ClipPlanes() (near, far float64) {
	return s.nearClip, s.farClip
}

// Dimensions returns the cached drawable size from the last processed frame.
func (s *Session) Dimensions() (width, height int) {
	return s.width, s.height
}

// snapshot returns a detached copy safe to hand to callers.
func (s *Session) snapshot() *Session {
	c := *s
	c.granted = append([]xr.Feature(nil), s.granted...)
	return &c
}
