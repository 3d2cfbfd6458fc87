package session

import (
	"errors"
	"log/slog"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Session errors.
var (
	ErrInvalidConfig         = errors.New("invalid configuration")
	ErrSessionActive         = errors.New("a session is already active")
	ErrModeUnsupported       = errors.New("session mode not available on this device")
	ErrSessionNotEstablished = errors.New("session not yet established")
	ErrNotRunning            = errors.New("no session running")
)

// State represents the session lifecycle state.
type State uint8

const (
	// StateIdle - no session exists.
	StateIdle State = iota

	// StateStarting - negotiation and acquisition in progress.
	StateStarting

	// StateRunning - session active, frames are processed.
	StateRunning

	// StateEnding - teardown in progress.
	StateEnding
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateEnding:
		return "ENDING"
	default:
		return "UNKNOWN"
	}
}

// EventType identifies a session event.
type EventType uint8

const (
	// EventStarted - the session reached Running.
	EventStarted EventType = iota

	// EventEnded - the session returned to Idle. Fires exactly once per
	// session, whether caller- or device-initiated.
	EventEnded

	// EventFrame - a hardware frame completed dispatch. Carries the raw
	// frame for advanced consumers.
	EventFrame

	// EventVisibilityChanged - device visibility notification.
	EventVisibilityChanged

	// EventDeviceLost - the drawable surface was torn down; rendering is
	// paused but the session survives.
	EventDeviceLost

	// EventDeviceRestored - the drawable surface was rebuilt.
	EventDeviceRestored

	// EventSubsystemUnavailable - a detection subsystem deactivated.
	EventSubsystemUnavailable

	// EventError - a failure was reported. Also delivered to the failing
	// caller when one exists.
	EventError
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventStarted:
		return "STARTED"
	case EventEnded:
		return "ENDED"
	case EventFrame:
		return "FRAME"
	case EventVisibilityChanged:
		return "VISIBILITY_CHANGED"
	case EventDeviceLost:
		return "DEVICE_LOST"
	case EventDeviceRestored:
		return "DEVICE_RESTORED"
	case EventSubsystemUnavailable:
		return "SUBSYSTEM_UNAVAILABLE"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event represents a session event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Mode is the session mode (for lifecycle events).
	Mode xr.SessionMode

	// Feature is the subsystem feature (for subsystem events and
	// subsystem-local errors).
	Feature xr.Feature

	// Visibility is the new visibility state (for visibility events).
	Visibility xr.VisibilityState

	// Frame is the raw frame object (for frame events).
	Frame xr.Frame

	// Reason describes device-initiated transitions.
	Reason string

	// Err is set for error events.
	Err error
}

// EventHandler handles session events.
type EventHandler func(Event)

// Config configures a session Manager.
type Config struct {
	// Device is the host session API. Required.
	Device xr.Device

	// SurfaceFactory constructs drawable surfaces. Required.
	SurfaceFactory xr.SurfaceFactory

	// ImageDecoder pre-processes reference images for image tracking.
	// Required only if image tracking is used.
	ImageDecoder xr.ImageDecoder

	// SupportedFeatures lists the detection features whose host API
	// surface exists on this platform. Subsystems outside this list
	// report Supported() == false and never activate.
	SupportedFeatures []xr.Feature

	// NearClip and FarClip are the default clip planes used when the
	// bound camera does not provide its own.
	NearClip float64
	FarClip  float64

	// ScaleFactor sizes the drawable surface, derived from the device
	// pixel ratio.
	ScaleFactor float64

	// AnchorStorePath enables persistent anchors when non-empty.
	AnchorStorePath string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// EventLogger is the optional structured event logger.
	// If nil, event logging is disabled.
	EventLogger log.Logger
}

// DefaultConfig returns a Config with sensible defaults. Device and
// SurfaceFactory must still be set by the caller.
func DefaultConfig() Config {
	return Config{
		SupportedFeatures: []xr.Feature{
			xr.FeatureHitTest,
			xr.FeatureLightEstimation,
			xr.FeatureImageTracking,
			xr.FeatureAnchors,
			xr.FeaturePlaneDetection,
			xr.FeatureDepthSensing,
			xr.FeatureMeshDetection,
		},
		NearClip:    0.1,
		FarClip:     1000,
		ScaleFactor: 1.0,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.Device == nil || c.SurfaceFactory == nil {
		return ErrInvalidConfig
	}
	if c.NearClip <= 0 || c.FarClip <= c.NearClip {
		return ErrInvalidConfig
	}
	if c.ScaleFactor <= 0 {
		return ErrInvalidConfig
	}
	return nil
}
