package sim

import (
	"github.com/go-gl/mathgl/mgl64"
)

// DamageState accumulates directional hull damage. Values only grow during a
// run; Reset is the sole way down.
type DamageState struct {
	Front, Rear, Left, Right float64
	Total                    float64
}

// ComponentHealth tracks per-part mechanical wear in [0,1].
type ComponentHealth struct {
	Suspension   float64
	Steering     float64
	Tires        float64
	Engine       float64
	Transmission float64
}

func fullHealth() ComponentHealth {
	return ComponentHealth{
		Suspension:   1,
		Steering:     1,
		Tires:        1,
		Engine:       1,
		Transmission: 1,
	}
}

// FailedCount returns how many components are below the failure threshold.
func (c ComponentHealth) FailedCount() int {
	n := 0
	for _, h := range [...]float64{c.Suspension, c.Steering, c.Tires, c.Engine, c.Transmission} {
		if h < ComponentFailThreshold {
			n++
		}
	}
	return n
}

type CrashReason int

const (
	CrashNone CrashReason = iota
	CrashLethalHazard
	CrashTotalDamage
	CrashCompoundFailure
	CrashComponentCascade
	CrashCriticalComponent
)

func (r CrashReason) String() string {
	switch r {
	case CrashNone:
		return "none"
	case CrashLethalHazard:
		return "lethal-hazard"
	case CrashTotalDamage:
		return "total-damage"
	case CrashCompoundFailure:
		return "compound-failure"
	case CrashComponentCascade:
		return "component-cascade"
	case CrashCriticalComponent:
		return "critical-component"
	}
	return "unknown"
}

// CrashState is a terminal simulation outcome, not an error. It holds until
// an external reset.
type CrashState struct {
	Crashed bool
	Reason  CrashReason
	Tick    uint64
}

// LaneChange tracks an in-flight lane transition.
type LaneChange struct {
	Active   bool
	From, To int
	Elapsed  float64
	Duration float64
}

// Progress returns the normalized transition parameter t in [0,1].
func (lc LaneChange) Progress() float64 {
	if !lc.Active || lc.Duration <= 0 {
		return 0
	}
	return clampF(lc.Elapsed/lc.Duration, 0, 1)
}

// VehicleState is the authoritative per-vehicle record. One integrator
// mutates it per tick; everything else reads snapshots.
type VehicleState struct {
	// World placement. Prev* feed interpolated rendering only and never
	// feed back into simulation.
	Position     mgl64.Vec3
	Rotation     mgl64.Quat
	PrevPosition mgl64.Vec3
	PrevRotation mgl64.Quat

	// Road-relative placement.
	Distance float64 // longitudinal distance along the track
	Lateral  float64 // signed offset from the road centerline
	Lane     int

	// Velocity decomposition in vehicle-local axes.
	ForwardSpeed float64
	LateralSpeed float64
	AngularSpeed float64

	// Drift sub-state. YawOffset is unbounded so full spins accumulate.
	YawOffset float64
	YawRate   float64
	SlipAngle float64
	Drifting  bool

	// Modes.
	Overdrive bool // unbounded top speed, asymptotic acceleration
	Autopilot bool

	Change LaneChange

	Damage DamageState
	Health ComponentHealth
	Crash  CrashState

	// Held road frame: on a track gap the vehicle keeps its last known
	// frame instead of dying mid-query.
	frame    Frame
	hasFrame bool
}

// NewVehicleState places a vehicle at the start of the given lane.
func NewVehicleState(lane, laneCount int) *VehicleState {
	v := &VehicleState{
		Lane:         lane,
		Lateral:      laneOffset(lane, laneCount),
		ForwardSpeed: MinForwardSpeed,
		Rotation:     mgl64.QuatIdent(),
		PrevRotation: mgl64.QuatIdent(),
		Health:       fullHealth(),
	}
	return v
}

// Reset clears damage, health, drift, and crash state at a tick boundary and
// re-places the vehicle. The run-flow controller calls this, never the core.
func (v *VehicleState) Reset(position mgl64.Vec3, rotation mgl64.Quat) {
	v.Position = position
	v.PrevPosition = position
	v.Rotation = rotation
	v.PrevRotation = rotation
	v.ForwardSpeed = MinForwardSpeed
	v.LateralSpeed = 0
	v.AngularSpeed = 0
	v.YawOffset = 0
	v.YawRate = 0
	v.SlipAngle = 0
	v.Drifting = false
	v.Change = LaneChange{}
	v.Damage = DamageState{}
	v.Health = fullHealth()
	v.Crash = CrashState{}
}

// placeInWorld derives world position and rotation from the road frame and
// the road-relative state.
func (v *VehicleState) placeInWorld(f Frame) {
	v.PrevPosition = v.Position
	v.PrevRotation = v.Rotation
	v.Position = f.Position.Add(f.Right.Mul(v.Lateral))

	// Heading is the road forward swung by the yaw offset around local up.
	yawRot := mgl64.QuatRotate(-v.YawOffset, f.Up)
	heading := yawRot.Rotate(f.Forward)
	v.Rotation = mgl64.QuatLookAtV(mgl64.Vec3{}, heading, f.Up)
}

// SideDamage returns combined left/right damage normalized against the crash
// limit, the input to magnetism degradation.
func (d DamageState) SideDamage() float64 {
	return clampF((d.Left+d.Right)/CrashDamageLimit, 0, 1)
}
