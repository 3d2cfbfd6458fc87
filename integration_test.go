package xrhost_test

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/xrhost-protocol/xrhost-go/pkg/log"
	"github.com/xrhost-protocol/xrhost-go/pkg/negotiate"
	"github.com/xrhost-protocol/xrhost-go/pkg/session"
	"github.com/xrhost-protocol/xrhost-go/pkg/simulate"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

func newSimDevice() *simulate.SimDevice {
	return simulate.NewDevice(
		[]xr.SessionMode{xr.ModeImmersiveVR, xr.ModeImmersiveAR},
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
}

func newSimManager(t *testing.T, device *simulate.SimDevice, mutate func(*session.Config)) *session.Manager {
	t.Helper()

	config := session.DefaultConfig()
	config.Device = device
	config.SurfaceFactory = device
	config.ImageDecoder = device
	if mutate != nil {
		mutate(&config)
	}

	mgr, err := session.NewManager(config)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return mgr
}

// TestE2E_SessionLifecycleWithLogging runs a full AR session against the
// simulated device and verifies the event log captures the lifecycle.
func TestE2E_SessionLifecycleWithLogging(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.xrlog")
	fl, err := log.NewFileLogger(logPath)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	device := newSimDevice()
	mgr := newSimManager(t, device, func(c *session.Config) {
		c.EventLogger = fl
	})

	ctx := context.Background()
	err = mgr.Start(ctx, nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, negotiate.Options{
		PlaneDetection: true,
		Anchors:        true,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	device.UpsertPlane(xr.PlaneSample{ID: "floor", Orientation: xr.PlaneHorizontal})
	device.UpsertPlane(xr.PlaneSample{ID: "wall", Orientation: xr.PlaneVertical})
	mgr.OnFrame(device.NextFrame())

	if got := mgr.PlaneDetector().Count(); got != 2 {
		t.Errorf("plane count = %d, want 2", got)
	}

	device.RemovePlane("wall")
	mgr.OnFrame(device.NextFrame())

	if got := mgr.PlaneDetector().Count(); got != 1 {
		t.Errorf("plane count after removal = %d, want 1", got)
	}

	if err := mgr.End(ctx); err != nil {
		t.Fatalf("End failed: %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close log failed: %v", err)
	}

	// The log must contain state transitions, detections and frame stats.
	reader, err := log.NewReader(logPath)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	counts := make(map[log.Category]int)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read event: %v", err)
		}
		counts[event.Category]++
	}

	if counts[log.CategoryState] < 4 {
		t.Errorf("state events = %d, want at least 4 (start+run+ending+idle)", counts[log.CategoryState])
	}
	if counts[log.CategoryFrame] != 2 {
		t.Errorf("frame events = %d, want 2", counts[log.CategoryFrame])
	}
	// 2 adds, 1 device removal, 1 forced removal at teardown.
	if counts[log.CategoryDetection] < 4 {
		t.Errorf("detection events = %d, want at least 4", counts[log.CategoryDetection])
	}
}

// TestE2E_PersistentAnchorsAcrossSessions persists an anchor in one session
// and restores it in the next.
func TestE2E_PersistentAnchorsAcrossSessions(t *testing.T) {
	storePath := filepath.Join(t.TempDir(), "anchors.json")
	device := newSimDevice()
	mgr := newSimManager(t, device, func(c *session.Config) {
		c.AnchorStorePath = storePath
	})

	ctx := context.Background()
	opts := negotiate.Options{Anchors: true}

	// First session: create and persist an anchor.
	if err := mgr.Start(ctx, nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, opts); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.AnchorTracker().CreateAnchor(xr.Pose{Position: xr.Vector3{Z: -1}}); err != nil {
		t.Fatalf("CreateAnchor failed: %v", err)
	}
	mgr.OnFrame(device.NextFrame()) // issues the creation
	mgr.OnFrame(device.NextFrame()) // anchor surfaces

	anchors := mgr.AnchorTracker().Anchors()
	if len(anchors) != 1 {
		t.Fatalf("anchor count = %d, want 1", len(anchors))
	}
	name, err := mgr.AnchorTracker().Persist(ctx, anchors[0].ID)
	if err != nil {
		t.Fatalf("Persist failed: %v", err)
	}
	if name == "" {
		t.Fatal("Persist returned an empty name")
	}
	if err := mgr.End(ctx); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	// Second session: the persisted anchor is restored automatically.
	if err := mgr.Start(ctx, nil, xr.ModeImmersiveAR, xr.ReferenceSpaceLocal, opts); err != nil {
		t.Fatalf("second Start failed: %v", err)
	}
	mgr.OnFrame(device.NextFrame())

	if got := mgr.AnchorTracker().Count(); got != 1 {
		t.Errorf("restored anchor count = %d, want 1", got)
	}
	if err := mgr.End(ctx); err != nil {
		t.Fatalf("second End failed: %v", err)
	}
}

// TestE2E_DeviceLossRecovery exercises surface loss and rebuild mid-session.
func TestE2E_DeviceLossRecovery(t *testing.T) {
	device := newSimDevice()
	mgr := newSimManager(t, device, nil)

	ctx := context.Background()
	if err := mgr.Start(ctx, nil, xr.ModeImmersiveVR, xr.ReferenceSpaceLocalFloor, negotiate.Options{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	mgr.HandleDeviceLost()
	if !mgr.Active() {
		t.Fatal("session must survive device loss")
	}

	// Frames keep flowing while the surface is gone.
	mgr.OnFrame(device.NextFrame())

	if err := mgr.HandleDeviceRestored(ctx); err != nil {
		t.Fatalf("HandleDeviceRestored failed: %v", err)
	}
	if mgr.CurrentSession().Surface() == nil {
		t.Fatal("surface must be rebuilt after restore")
	}

	if err := mgr.End(ctx); err != nil {
		t.Fatalf("End failed: %v", err)
	}
}
