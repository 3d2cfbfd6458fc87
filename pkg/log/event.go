package log

import (
	"time"
)

// Event represents a session event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the session lifecycle.
	SessionID string `cbor:"2,keyasint"`

	// Frame is the hardware frame counter at capture time (0 outside the
	// frame loop).
	Frame uint64 `cbor:"3,keyasint,omitempty"`

	// Category classifies the event type.
	Category Category `cbor:"4,keyasint"`

	// Mode is the session mode name (populated once negotiation starts).
	Mode string `cbor:"5,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	State      *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Lifecycle transitions
	Detection  *DetectionEvent   `cbor:"11,keyasint,omitempty"` // Entity add/remove
	FrameStats *FrameStatsEvent  `cbor:"12,keyasint,omitempty"` // Per-frame statistics
	Error      *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryState indicates a lifecycle state change.
	CategoryState Category = 0
	// CategoryDetection indicates a detected-entity change.
	CategoryDetection Category = 1
	// CategoryFrame indicates per-frame statistics.
	CategoryFrame Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryDetection:
		return "DETECTION"
	case CategoryFrame:
		return "FRAME"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures session lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// DetectionOp indicates what happened to a detected entity or subsystem.
type DetectionOp uint8

const (
	// DetectionAdd - a previously-unseen entity appeared.
	DetectionAdd DetectionOp = 0
	// DetectionRemove - the device stopped reporting an entity.
	DetectionRemove DetectionOp = 1
	// DetectionUnavailable - the subsystem deactivated (session end).
	DetectionUnavailable DetectionOp = 2
)

// String returns the operation name.
func (o DetectionOp) String() string {
	switch o {
	case DetectionAdd:
		return "ADD"
	case DetectionRemove:
		return "REMOVE"
	case DetectionUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}

// DetectionEvent captures a detected-entity lifecycle change.
type DetectionEvent struct {
	// Subsystem is the feature name (e.g. "plane-detection").
	Subsystem string `cbor:"1,keyasint"`

	// Op is what happened.
	Op DetectionOp `cbor:"2,keyasint"`

	// EntityID is the device-assigned identity (empty for subsystem-level
	// events).
	EntityID string `cbor:"3,keyasint,omitempty"`

	// Count is the subsystem's entity count after the change.
	Count int `cbor:"4,keyasint"`
}

// FrameStatsEvent captures per-frame dispatch statistics.
type FrameStatsEvent struct {
	// ViewCount is the number of views this frame.
	ViewCount int `cbor:"1,keyasint"`

	// PoseAvailable indicates whether a viewer pose was computed.
	PoseAvailable bool `cbor:"2,keyasint"`

	// SubsystemsRun is the number of detection subsystems dispatched.
	SubsystemsRun int `cbor:"3,keyasint,omitempty"`

	// DispatchTime is the total subsystem dispatch duration.
	// Stored as nanoseconds.
	DispatchTime time.Duration `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Message is the error message.
	Message string `cbor:"1,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"2,keyasint,omitempty"`

	// Subsystem is the feature name for subsystem-local errors.
	Subsystem string `cbor:"3,keyasint,omitempty"`
}
