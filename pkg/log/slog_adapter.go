package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes session events to an slog.Logger.
// Useful for development when you want to see session events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("session_id", event.SessionID),
		slog.String("category", event.Category.String()),
	}

	if event.Frame != 0 {
		attrs = append(attrs, slog.Uint64("frame", event.Frame))
	}
	if event.Mode != "" {
		attrs = append(attrs, slog.String("mode", event.Mode))
	}

	// Add type-specific attributes
	switch {
	case event.State != nil:
		attrs = append(attrs,
			slog.String("old_state", event.State.OldState),
			slog.String("new_state", event.State.NewState),
		)
		if event.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.State.Reason))
		}
	case event.Detection != nil:
		attrs = append(attrs,
			slog.String("subsystem", event.Detection.Subsystem),
			slog.String("op", event.Detection.Op.String()),
			slog.Int("count", event.Detection.Count),
		)
		if event.Detection.EntityID != "" {
			attrs = append(attrs, slog.String("entity_id", event.Detection.EntityID))
		}
	case event.FrameStats != nil:
		attrs = append(attrs,
			slog.Int("views", event.FrameStats.ViewCount),
			slog.Bool("pose", event.FrameStats.PoseAvailable),
			slog.Int("subsystems", event.FrameStats.SubsystemsRun),
		)
		if event.FrameStats.DispatchTime != 0 {
			attrs = append(attrs, slog.Duration("dispatch_time", event.FrameStats.DispatchTime))
		}
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Subsystem != "" {
			attrs = append(attrs, slog.String("error_subsystem", event.Error.Subsystem))
		}
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "session", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
