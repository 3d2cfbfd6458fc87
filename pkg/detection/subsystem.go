package detection

import (
	"sync"
	"time"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// ErrorFunc reports a subsystem-local error without aborting the frame loop.
type ErrorFunc func(feature xr.Feature, err error)

// Subsystem is the contract every detection subsystem implements.
type Subsystem interface {
	// Feature returns the capability name this subsystem negotiates.
	Feature() xr.Feature

	// Supported reports whether the host API surface exists. Fixed at
	// construction.
	Supported() bool

	// Available reports whether the current session negotiated this
	// subsystem's feature. False until session start confirms it.
	Available() bool

	// SetAvailable transitions the subsystem. Deactivation force-removes
	// every held entity before the unavailable observer fires.
	SetAvailable(available bool)

	// Update processes one hardware frame. No-op unless Supported and
	// Available. The returned error is advisory; Update never panics.
	Update(frame xr.Frame) error

	// Reset drops all per-session state (entities, handles, counters).
	Reset()
}

// base carries the supported/available state machine shared by all
// subsystems.
type base struct {
	mu sync.RWMutex

	feature   xr.Feature
	supported bool
	available bool

	onUnavailable func()
	errFn         ErrorFunc

	eventLogger log.Logger
	sessionID   string
	lastFrame   uint64

	// clearAll force-removes all entities; set by the concrete subsystem.
	clearAll func()
}

func newBase(feature xr.Feature, supported bool) base {
	return base{
		feature:   feature,
		supported: supported,
	}
}

// Feature returns the negotiated capability name.
func (b *base) Feature() xr.Feature {
	return b.feature
}

// Supported reports whether the host API surface exists.
func (b *base) Supported() bool {
	return b.supported
}

// Available reports whether the current session negotiated this feature.
func (b *base) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.available
}

// SetAvailable transitions availability. Deactivating clears all entities
// (firing their remove events) before the unavailable observer fires.
func (b *base) SetAvailable(available bool) {
	b.mu.Lock()
	if b.available == available {
		b.mu.Unlock()
		return
	}
	b.available = available
	onUnavailable := b.onUnavailable
	clearAll := b.clearAll
	b.mu.Unlock()

	if available {
		return
	}

	if clearAll != nil {
		clearAll()
	}
	b.logDetection(log.DetectionEvent{
		Subsystem: string(b.feature),
		Op:        log.DetectionUnavailable,
	})
	if onUnavailable != nil {
		onUnavailable()
	}
}

// OnUnavailable sets the observer fired after deactivation, once all
// entities have been removed.
func (b *base) OnUnavailable(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onUnavailable = fn
}

// SetErrorFunc sets the subsystem-local error reporter.
func (b *base) SetErrorFunc(fn ErrorFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errFn = fn
}

// SetEventLogger attaches the session event logger. Called at session start.
func (b *base) SetEventLogger(logger log.Logger, sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.eventLogger = logger
	b.sessionID = sessionID
}

// active reports whether Update should process frames, and records the
// frame number for event correlation.
func (b *base) active(frame uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.supported || !b.available {
		return false
	}
	b.lastFrame = frame
	return true
}

// reportError delivers err to the error reporter and the event logger.
func (b *base) reportError(err error, context string) {
	b.mu.RLock()
	errFn := b.errFn
	logger := b.eventLogger
	sessionID := b.sessionID
	frame := b.lastFrame
	b.mu.RUnlock()

	if logger != nil {
		logger.Log(log.Event{
			Timestamp: time.Now(),
			SessionID: sessionID,
			Frame:     frame,
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Message:   err.Error(),
				Context:   context,
				Subsystem: string(b.feature),
			},
		})
	}
	if errFn != nil {
		errFn(b.feature, err)
	}
}

// logDetection emits a detection event for this subsystem.
func (b *base) logDetection(detail log.DetectionEvent) {
	b.mu.RLock()
	logger := b.eventLogger
	sessionID := b.sessionID
	frame := b.lastFrame
	b.mu.RUnlock()

	if logger == nil {
		return
	}
	logger.Log(log.Event{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Frame:     frame,
		Category:  log.CategoryDetection,
		Detection: &detail,
	})
}
