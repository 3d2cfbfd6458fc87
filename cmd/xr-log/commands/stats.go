package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
)

// Stats reads the whole log file and prints aggregate statistics.
func Stats(w io.Writer, path string) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	var (
		total      int
		byCategory = make(map[log.Category]int)
		sessions   = make(map[string]bool)
		detections = make(map[string]int)
		errors     int
		frames     int
		poseMisses int
		first      time.Time
		last       time.Time
	)

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read event: %w", err)
		}

		total++
		byCategory[event.Category]++
		if event.SessionID != "" {
			sessions[event.SessionID] = true
		}
		if first.IsZero() || event.Timestamp.Before(first) {
			first = event.Timestamp
		}
		if event.Timestamp.After(last) {
			last = event.Timestamp
		}

		switch {
		case event.Detection != nil:
			detections[event.Detection.Subsystem]++
		case event.FrameStats != nil:
			frames++
			if !event.FrameStats.PoseAvailable {
				poseMisses++
			}
		case event.Error != nil:
			errors++
		}
	}

	fmt.Fprintf(w, "Events:    %d\n", total)
	fmt.Fprintf(w, "Sessions:  %d\n", len(sessions))
	if !first.IsZero() {
		fmt.Fprintf(w, "Span:      %s\n", last.Sub(first).Round(time.Millisecond))
	}

	fmt.Fprintln(w, "\nBy category:")
	for _, c := range []log.Category{log.CategoryState, log.CategoryDetection, log.CategoryFrame, log.CategoryError} {
		if byCategory[c] > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", c.String(), byCategory[c])
		}
	}

	if frames > 0 {
		fmt.Fprintf(w, "\nFrames:    %d (%d without pose)\n", frames, poseMisses)
	}
	if errors > 0 {
		fmt.Fprintf(w, "Errors:    %d\n", errors)
	}

	if len(detections) > 0 {
		fmt.Fprintln(w, "\nDetection events by subsystem:")
		names := make([]string, 0, len(detections))
		for name := range detections {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(w, "  %-18s %d\n", name, detections[name])
		}
	}
	return nil
}
