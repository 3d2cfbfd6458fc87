// Package commands implements the xr-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category  *log.Category
	SessionID string
	Subsystem string
}

// ParseCategoryFlag parses a category name from the command line.
func ParseCategoryFlag(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "state":
		return log.CategoryState, nil
	case "detection":
		return log.CategoryDetection, nil
	case "frame":
		return log.CategoryFrame, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("unknown category %q (state, detection, frame, error)", s)
	}
}

// View reads the log file and writes matching events in human-readable form.
func View(w io.Writer, path string, filter ViewFilter) error {
	reader, err := log.NewFilteredReader(path, log.Filter{
		SessionID: filter.SessionID,
		Category:  filter.Category,
		Subsystem: filter.Subsystem,
	})
	if err != nil {
		return err
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		formatEvent(w, event)
		count++
	}

	fmt.Fprintf(w, "%d event(s)\n", count)
	return nil
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [session:id] frame CATEGORY
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s [session:%s] #%-6d %s\n",
		ts, shortenSessionID(event.SessionID), event.Frame, event.Category)

	switch {
	case event.State != nil:
		formatStateDetails(w, event)
	case event.Detection != nil:
		formatDetectionDetails(w, event.Detection)
	case event.FrameStats != nil:
		formatFrameStatsDetails(w, event.FrameStats)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatStateDetails(w io.Writer, event log.Event) {
	sc := event.State
	fmt.Fprintf(w, "  %s -> %s", sc.OldState, sc.NewState)
	if event.Mode != "" {
		fmt.Fprintf(w, "  mode=%s", event.Mode)
	}
	fmt.Fprintln(w)
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatDetectionDetails(w io.Writer, d *log.DetectionEvent) {
	fmt.Fprintf(w, "  %s %s", d.Subsystem, d.Op)
	if d.EntityID != "" {
		fmt.Fprintf(w, "  entity=%s", d.EntityID)
	}
	fmt.Fprintf(w, "  count=%d\n", d.Count)
}

func formatFrameStatsDetails(w io.Writer, fs *log.FrameStatsEvent) {
	fmt.Fprintf(w, "  views=%d pose=%v subsystems=%d", fs.ViewCount, fs.PoseAvailable, fs.SubsystemsRun)
	if fs.DispatchTime > 0 {
		fmt.Fprintf(w, " dispatch=%s", fs.DispatchTime)
	}
	fmt.Fprintln(w)
}

func formatErrorDetails(w io.Writer, e *log.ErrorEventData) {
	fmt.Fprintf(w, "  Error: %s\n", e.Message)
	if e.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", e.Context)
	}
	if e.Subsystem != "" {
		fmt.Fprintf(w, "  Subsystem: %s\n", e.Subsystem)
	}
}
