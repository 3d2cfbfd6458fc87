package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/xrhost-protocol/xrhost-go/pkg/negotiate"
	"github.com/xrhost-protocol/xrhost-go/pkg/session"
	"github.com/xrhost-protocol/xrhost-go/pkg/simulate"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Shell is the interactive simulator command loop.
type Shell struct {
	device *simulate.SimDevice
	mgr    *session.Manager
	rl     *readline.Instance
}

// NewShell creates the shell and its session manager.
func NewShell(device *simulate.SimDevice, config session.Config, level slog.Level) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sim> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	// Route debug logging through readline so it does not clobber the
	// prompt.
	config.Logger = slog.New(slog.NewTextHandler(rl.Stdout(), &slog.HandlerOptions{Level: level}))

	mgr, err := session.NewManager(config)
	if err != nil {
		rl.Close()
		return nil, err
	}

	s := &Shell{device: device, mgr: mgr, rl: rl}
	mgr.OnEvent(s.handleEvent)
	return s, nil
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "start":
			s.cmdStart(ctx, args)

		case "end":
			s.cmdEnd(ctx)

		case "frame", "f":
			s.cmdFrame(args)

		case "planes", "p":
			s.cmdPlanes(args)

		case "anchor", "a":
			s.cmdAnchor(ctx, args)

		case "lose":
			s.mgr.HandleDeviceLost()

		case "restore":
			if err := s.mgr.HandleDeviceRestored(ctx); err != nil {
				fmt.Fprintf(s.rl.Stdout(), "restore failed: %v\n", err)
			}

		case "visibility", "vis":
			s.cmdVisibility(args)

		case "device-end":
			reason := "simulated device end"
			if len(args) > 0 {
				reason = strings.Join(args, " ")
			}
			s.device.EndSession(reason)

		case "scenario":
			s.cmdScenario(ctx, args)

		case "status":
			s.cmdStatus()

		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

// Stdout returns a writer coordinated with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
XR Simulator Commands:
  Session:
    start [vr|ar|inline] [space]  - Start a session (default: ar, local)
    end                           - End the session
    device-end [reason]           - Fire a device-initiated end
    status                        - Show session and subsystem state

  Frames:
    frame [n]                     - Dispatch n frames (default 1)
    planes add <id> [orientation] - Add/refresh a detected plane
    planes rm <id>                - Remove a detected plane
    planes ls                     - List tracked planes
    anchor create [x y z]         - Queue an anchor creation
    anchor ls                     - List tracked anchors
    anchor persist <id>           - Persist a tracked anchor

  Device:
    lose                          - Simulate device loss
    restore                       - Rebuild the drawable surface
    visibility <state>            - Fire a visibility change
    scenario <file>               - Play a YAML scenario

  quit                            - Exit`)
}

func (s *Shell) handleEvent(evt session.Event) {
	out := s.rl.Stdout()
	switch evt.Type {
	case session.EventStarted:
		fmt.Fprintf(out, "[EVENT] session started (%s)\n", evt.Mode)
	case session.EventEnded:
		fmt.Fprintf(out, "[EVENT] session ended: %s\n", evt.Reason)
	case session.EventVisibilityChanged:
		fmt.Fprintf(out, "[EVENT] visibility: %s\n", evt.Visibility)
	case session.EventDeviceLost:
		fmt.Fprintln(out, "[EVENT] device lost")
	case session.EventDeviceRestored:
		fmt.Fprintln(out, "[EVENT] device restored")
	case session.EventSubsystemUnavailable:
		fmt.Fprintf(out, "[EVENT] subsystem unavailable: %s\n", evt.Feature)
	case session.EventError:
		fmt.Fprintf(out, "[EVENT] error: %v\n", evt.Err)
	}
}

func (s *Shell) cmdStart(ctx context.Context, args []string) {
	mode := xr.ModeImmersiveAR
	if len(args) > 0 {
		switch args[0] {
		case "vr":
			mode = xr.ModeImmersiveVR
		case "ar":
			mode = xr.ModeImmersiveAR
		case "inline":
			mode = xr.ModeInline
		default:
			fmt.Fprintf(s.rl.Stdout(), "unknown mode %q\n", args[0])
			return
		}
	}

	space := xr.ReferenceSpaceLocal
	if len(args) > 1 {
		space = xr.ReferenceSpaceType(args[1])
	}

	opts := negotiate.Options{}
	if mode == xr.ModeImmersiveAR {
		opts.Anchors = true
		opts.PlaneDetection = true
		opts.MeshDetection = true
		opts.DepthSensing = &negotiate.DepthSensingOptions{}
	}

	if err := s.mgr.Start(ctx, nil, mode, space, opts); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "start failed: %v\n", err)
	}
}

func (s *Shell) cmdEnd(ctx context.Context) {
	if err := s.mgr.End(ctx); err != nil {
		fmt.Fprintf(s.rl.Stdout(), "end failed: %v\n", err)
	}
}

func (s *Shell) cmdFrame(args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintln(s.rl.Stdout(), "usage: frame [n]")
			return
		}
		n = v
	}
	for i := 0; i < n; i++ {
		s.mgr.OnFrame(s.device.NextFrame())
	}
	fmt.Fprintf(s.rl.Stdout(), "dispatched %d frame(s), now at #%d\n", n, s.device.FrameNumber())
}

func (s *Shell) cmdPlanes(args []string) {
	out := s.rl.Stdout()
	if len(args) == 0 {
		fmt.Fprintln(out, "usage: planes add|rm|ls ...")
		return
	}

	switch args[0] {
	case "add":
		if len(args) < 2 {
			fmt.Fprintln(out, "usage: planes add <id> [horizontal|vertical]")
			return
		}
		orientation := xr.PlaneHorizontal
		if len(args) > 2 && args[2] == "vertical" {
			orientation = xr.PlaneVertical
		}
		s.device.UpsertPlane(xr.PlaneSample{
			ID:          xr.PlaneID(args[1]),
			Orientation: orientation,
		})
		fmt.Fprintf(out, "plane %s queued; takes effect next frame\n", args[1])

	case "rm":
		if len(args) < 2 {
			fmt.Fprintln(out, "usage: planes rm <id>")
			return
		}
		s.device.RemovePlane(xr.PlaneID(args[1]))
		fmt.Fprintf(out, "plane %s removed; takes effect next frame\n", args[1])

	case "ls":
		planes := s.mgr.PlaneDetector().Planes()
		if len(planes) == 0 {
			fmt.Fprintln(out, "no tracked planes")
			return
		}
		for _, p := range planes {
			fmt.Fprintf(out, "  %s  %s\n", p.ID, p.Orientation)
		}

	default:
		fmt.Fprintln(out, "usage: planes add|rm|ls ...")
	}
}

func (s *Shell) cmdAnchor(ctx context.Context, args []string) {
	out := s.rl.Stdout()
	if len(args) == 0 {
		fmt.Fprintln(out, "usage: anchor create|ls|persist ...")
		return
	}

	switch args[0] {
	case "create":
		pose := xr.Pose{}
		if len(args) >= 4 {
			x, errX := strconv.ParseFloat(args[1], 64)
			y, errY := strconv.ParseFloat(args[2], 64)
			z, errZ := strconv.ParseFloat(args[3], 64)
			if errX != nil || errY != nil || errZ != nil {
				fmt.Fprintln(out, "usage: anchor create [x y z]")
				return
			}
			pose.Position = xr.Vector3{X: x, Y: y, Z: z}
		}
		if err := s.mgr.AnchorTracker().CreateAnchor(pose); err != nil {
			fmt.Fprintf(out, "create failed: %v\n", err)
			return
		}
		fmt.Fprintln(out, "anchor creation queued; surfaces after the next frame")

	case "ls":
		anchors := s.mgr.AnchorTracker().Anchors()
		if len(anchors) == 0 {
			fmt.Fprintln(out, "no tracked anchors")
			return
		}
		for _, a := range anchors {
			persisted := ""
			if a.Persistent {
				persisted = "  (persisted: " + a.PersistentName + ")"
			}
			fmt.Fprintf(out, "  %s%s\n", a.ID, persisted)
		}

	case "persist":
		if len(args) < 2 {
			fmt.Fprintln(out, "usage: anchor persist <id>")
			return
		}
		name, err := s.mgr.AnchorTracker().Persist(ctx, xr.AnchorID(args[1]))
		if err != nil {
			fmt.Fprintf(out, "persist failed: %v\n", err)
			return
		}
		fmt.Fprintf(out, "persisted as %s\n", name)

	default:
		fmt.Fprintln(out, "usage: anchor create|ls|persist ...")
	}
}

func (s *Shell) cmdVisibility(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(s.rl.Stdout(), "usage: visibility visible|visible-blurred|hidden")
		return
	}
	s.device.SetVisibility(xr.VisibilityState(args[0]))
}

func (s *Shell) cmdScenario(ctx context.Context, args []string) {
	out := s.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(out, "usage: scenario <file>")
		return
	}

	sc, err := simulate.LoadScenario(args[0])
	if err != nil {
		fmt.Fprintf(out, "load failed: %v\n", err)
		return
	}

	if err := simulate.NewPlayer(s.device, s.mgr).Run(ctx, sc); err != nil {
		fmt.Fprintf(out, "scenario failed: %v\n", err)
		return
	}
	fmt.Fprintf(out, "scenario %q played (%d frame specs); session left running\n", sc.Name, len(sc.Frames))
}

func (s *Shell) cmdStatus() {
	out := s.rl.Stdout()
	fmt.Fprintf(out, "state: %s\n", s.mgr.State())

	sess := s.mgr.CurrentSession()
	if sess == nil {
		return
	}
	fmt.Fprintf(out, "session: %s (%s, %s)\n", sess.ID(), sess.Mode(), sess.ReferenceSpaceType())
	fmt.Fprintf(out, "granted: %v\n", sess.GrantedFeatures())
	fmt.Fprintf(out, "frame:   #%d\n", s.device.FrameNumber())
	fmt.Fprintf(out, "subsystems:\n")
	fmt.Fprintf(out, "  planes:  available=%-5v count=%d\n", s.mgr.PlaneDetector().Available(), s.mgr.PlaneDetector().Count())
	fmt.Fprintf(out, "  meshes:  available=%-5v count=%d\n", s.mgr.MeshDetector().Available(), s.mgr.MeshDetector().Count())
	fmt.Fprintf(out, "  images:  available=%-5v count=%d\n", s.mgr.ImageTracker().Available(), s.mgr.ImageTracker().Count())
	fmt.Fprintf(out, "  anchors: available=%-5v count=%d\n", s.mgr.AnchorTracker().Available(), s.mgr.AnchorTracker().Count())
	fmt.Fprintf(out, "  hits:    available=%-5v count=%d\n", s.mgr.HitTester().Available(), s.mgr.HitTester().Count())
	if estimate, ok := s.mgr.LightEstimator().CurrentEstimate(); ok {
		fmt.Fprintf(out, "  light:   direction=%+v\n", estimate.PrimaryLightDirection)
	}
	if depth, ok := s.mgr.DepthSensor().CurrentDepth(); ok {
		fmt.Fprintf(out, "  depth:   %dx%d\n", depth.Width, depth.Height)
	}
}
