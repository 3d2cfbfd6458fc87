package simulate

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/xrhost-protocol/xrhost-go/pkg/negotiate"
	"github.com/xrhost-protocol/xrhost-go/pkg/session"
	"github.com/xrhost-protocol/xrhost-go/pkg/xr"
)

// Scenario is a scripted session: a mode, a feature selection and a sequence
// of frame specifications played back in order.
type Scenario struct {
	// Name identifies the scenario in logs and output.
	Name string `yaml:"name"`

	// Mode is the session mode: inline, immersive-vr, immersive-ar.
	Mode string `yaml:"mode"`

	// ReferenceSpace is the reference space type (default "local").
	ReferenceSpace string `yaml:"reference_space,omitempty"`

	// Features selects the optional detection features to negotiate.
	Features FeatureSpec `yaml:"features,omitempty"`

	// Frames are played in order.
	Frames []FrameSpec `yaml:"frames"`
}

// FeatureSpec mirrors the negotiation options in YAML form.
type FeatureSpec struct {
	Anchors        bool `yaml:"anchors,omitempty"`
	PlaneDetection bool `yaml:"plane_detection,omitempty"`
	MeshDetection  bool `yaml:"mesh_detection,omitempty"`
	DepthSensing   bool `yaml:"depth_sensing,omitempty"`
}

// FrameSpec is one scripted frame: the full entity enumerations the device
// reports. Absence from a list means the entity is gone this frame.
type FrameSpec struct {
	// Repeat plays this frame spec N times (default 1).
	Repeat int `yaml:"repeat,omitempty"`

	// PoseLost simulates transient tracking loss for this frame.
	PoseLost bool `yaml:"pose_lost,omitempty"`

	Planes []PlaneSpec `yaml:"planes,omitempty"`
	Meshes []MeshSpec  `yaml:"meshes,omitempty"`
	Images []ImageSpec `yaml:"images,omitempty"`
	Hits   []HitSpec   `yaml:"hits,omitempty"`

	// Light enables an ambient light estimate this frame.
	Light bool `yaml:"light,omitempty"`
}

// Vec is a YAML-friendly position value.
type Vec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// PlaneSpec describes one detected plane.
type PlaneSpec struct {
	ID          string `yaml:"id"`
	Orientation string `yaml:"orientation,omitempty"`
	Position    Vec    `yaml:"position,omitempty"`
	LastChanged uint64 `yaml:"last_changed,omitempty"`
}

// MeshSpec describes one detected mesh.
type MeshSpec struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label,omitempty"`
	Position Vec    `yaml:"position,omitempty"`
}

// ImageSpec describes one tracked image result.
type ImageSpec struct {
	Index    int     `yaml:"index"`
	State    string  `yaml:"state,omitempty"`
	Width    float64 `yaml:"width,omitempty"`
	Position Vec     `yaml:"position,omitempty"`
}

// HitSpec describes one hit-test result.
type HitSpec struct {
	ID       string `yaml:"id"`
	Position Vec    `yaml:"position,omitempty"`
}

// ParseScenario parses a scenario from YAML bytes.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario name is required")
	}
	if len(sc.Frames) == 0 {
		return nil, fmt.Errorf("scenario %q must have at least one frame", sc.Name)
	}
	if _, err := sc.SessionMode(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario loads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// SessionMode resolves the scripted mode name.
func (s *Scenario) SessionMode() (xr.SessionMode, error) {
	switch s.Mode {
	case "inline":
		return xr.ModeInline, nil
	case "immersive-vr":
		return xr.ModeImmersiveVR, nil
	case "immersive-ar", "":
		return xr.ModeImmersiveAR, nil
	default:
		return 0, fmt.Errorf("unknown session mode %q", s.Mode)
	}
}

// ReferenceSpaceType resolves the scripted reference space, defaulting to
// local.
func (s *Scenario) ReferenceSpaceType() xr.ReferenceSpaceType {
	if s.ReferenceSpace == "" {
		return xr.ReferenceSpaceLocal
	}
	return xr.ReferenceSpaceType(s.ReferenceSpace)
}

// Options builds the negotiation options for the scripted features.
func (s *Scenario) Options() negotiate.Options {
	opts := negotiate.Options{
		Anchors:        s.Features.Anchors,
		PlaneDetection: s.Features.PlaneDetection,
		MeshDetection:  s.Features.MeshDetection,
	}
	if s.Features.DepthSensing {
		opts.DepthSensing = &negotiate.DepthSensingOptions{}
	}
	return opts
}

// Player feeds a scenario's frames through a session manager.
type Player struct {
	device *SimDevice
	mgr    *session.Manager
}

// NewPlayer creates a scenario player.
func NewPlayer(device *SimDevice, mgr *session.Manager) *Player {
	return &Player{device: device, mgr: mgr}
}

// Run starts a session for the scenario and plays every frame. The session
// is left running so the caller can inspect state; ending it is the
// caller's responsibility.
func (p *Player) Run(ctx context.Context, sc *Scenario) error {
	mode, err := sc.SessionMode()
	if err != nil {
		return err
	}

	if err := p.mgr.Start(ctx, nil, mode, sc.ReferenceSpaceType(), sc.Options()); err != nil {
		return fmt.Errorf("scenario %q: start session: %w", sc.Name, err)
	}

	for _, frame := range sc.Frames {
		repeat := frame.Repeat
		if repeat < 1 {
			repeat = 1
		}
		for n := 0; n < repeat; n++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			p.applyFrame(frame)
			p.mgr.OnFrame(p.device.NextFrame())
		}
	}
	return nil
}

// applyFrame pushes one frame spec's enumerations into the device.
func (p *Player) applyFrame(frame FrameSpec) {
	p.device.SetPoseLost(frame.PoseLost)

	planes := make([]xr.PlaneSample, 0, len(frame.Planes))
	for _, ps := range frame.Planes {
		planes = append(planes, xr.PlaneSample{
			ID:          xr.PlaneID(ps.ID),
			Pose:        xr.Pose{Position: xr.Vector3{X: ps.Position.X, Y: ps.Position.Y, Z: ps.Position.Z}},
			Orientation: xr.PlaneOrientation(ps.Orientation),
			LastChanged: ps.LastChanged,
		})
	}
	p.device.SetPlanes(planes)

	meshes := make([]xr.MeshSample, 0, len(frame.Meshes))
	for _, ms := range frame.Meshes {
		meshes = append(meshes, xr.MeshSample{
			ID:    xr.MeshID(ms.ID),
			Pose:  xr.Pose{Position: xr.Vector3{X: ms.Position.X, Y: ms.Position.Y, Z: ms.Position.Z}},
			Label: ms.Label,
		})
	}
	p.device.SetMeshes(meshes)

	images := make([]xr.ImageSample, 0, len(frame.Images))
	for _, is := range frame.Images {
		state := xr.ImageTracked
		if is.State == string(xr.ImageEmulated) {
			state = xr.ImageEmulated
		}
		images = append(images, xr.ImageSample{
			Index:         is.Index,
			Pose:          xr.Pose{Position: xr.Vector3{X: is.Position.X, Y: is.Position.Y, Z: is.Position.Z}},
			State:         state,
			MeasuredWidth: is.Width,
		})
	}
	p.device.SetImages(images)

	hits := make([]xr.HitSample, 0, len(frame.Hits))
	for _, hs := range frame.Hits {
		hits = append(hits, xr.HitSample{
			ID:   xr.HitID(hs.ID),
			Pose: xr.Pose{Position: xr.Vector3{X: hs.Position.X, Y: hs.Position.Y, Z: hs.Position.Z}},
		})
	}
	p.device.SetHits(hits)

	if frame.Light {
		p.device.SetLight(&xr.LightEstimate{
			PrimaryLightDirection: xr.Vector3{Y: -1},
			PrimaryLightIntensity: xr.Vector3{X: 1, Y: 1, Z: 1},
		})
	} else {
		p.device.SetLight(nil)
	}
}
