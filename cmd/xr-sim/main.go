// Command xr-sim drives a simulated XR device session from an interactive
// shell.
//
// The simulator wires a session manager to an in-memory device, so the full
// lifecycle (negotiation, frame dispatch, detection, device loss) can be
// exercised without hardware.
//
// Usage:
//
//	xr-sim [flags]
//
// Flags:
//
//	-log-file string   Write CBOR session events to this file
//	-anchors string    Persistent anchor store path
//	-scale float       Drawable surface scale factor (default 1.0)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Interactive session with event logging
//	xr-sim -log-file session.xrlog
//
//	# Play a scripted scenario, then inspect state
//	xr-sim
//	sim> scenario testdata/living-room.yaml
//	sim> status
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/session"
	"github.com/xrhost-protocol/xrhost-go/pkg/simulate"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

func main() {
	logFile := flag.String("log-file", "", "Write CBOR session events to this file")
	anchors := flag.String("anchors", "", "Persistent anchor store path")
	scale := flag.Float64("scale", 1.0, "Drawable surface scale factor")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(*logFile, *anchors, *scale, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(logFile, anchors string, scale float64, logLevel string) error {
	device := simulate.NewDevice(
		[]xr.SessionMode{xr.ModeInline, xr.ModeImmersiveVR, xr.ModeImmersiveAR},
		[]xr.Feature{
			xr.FeatureHitTest,
			xr.FeatureLightEstimation,
			xr.FeatureImageTracking,
			xr.FeatureAnchors,
			xr.FeaturePlaneDetection,
			xr.FeatureMeshDetection,
			xr.FeatureDepthSensing,
		},
	)

	var eventLogger log.Logger = log.NoopLogger{}
	if logFile != "" {
		fl, err := log.NewFileLogger(logFile)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer fl.Close()
		eventLogger = fl
	}

	config := session.DefaultConfig()
	config.Device = device
	config.SurfaceFactory = device
	config.ImageDecoder = device
	config.ScaleFactor = scale
	config.AnchorStorePath = anchors
	config.EventLogger = eventLogger

	shell, err := NewShell(device, config, parseLevel(logLevel))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shell.Run(ctx, cancel)
	return nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
