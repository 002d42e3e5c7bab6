package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// HazardContact is one tick's contact between a vehicle and a hazard, as
// reported by the external narrow-phase detector. Consumed and cleared
// within the same tick.
type HazardContact struct {
	OtherID     uint64
	ImpactSpeed float64    // detector's closing-speed estimate, for consumers
	Severity    float64    // hazard lethality in [0,1]
	MassFactor  float64    // relative mass of the other object in [0,1]
	Normal      mgl64.Vec3 // unit normal pointing from the hazard into the vehicle
	Point       mgl64.Vec3
}

// ImpactResult summarizes the resolved contact for crash evaluation and
// external consumers (audio, scoring).
type ImpactResult struct {
	Applied     bool
	ImpactSpeed float64 // effective v_impact from the authoritative velocity
	Severity    float64
	Energy      float64 // damage energy added this tick
}

// bodyAxes returns the vehicle's forward and right axes: the road frame
// swung by the yaw offset, so a spun-around car takes a rear hit from a
// head-on normal.
func bodyAxes(v *VehicleState, f Frame) (mgl64.Vec3, mgl64.Vec3) {
	rot := mgl64.QuatRotate(-v.YawOffset, f.Up)
	return rot.Rotate(f.Forward), rot.Rotate(f.Right)
}

// ResolveContacts turns this tick's contacts into an impulse, accumulated
// damage, and component wear. At most one contact is resolved per vehicle
// per tick: simultaneous contacts reduce to the strongest (highest effective
// impact speed), which keeps pile-ups from multiplying impulses.
func ResolveContacts(v *VehicleState, f Frame, contacts []HazardContact) ImpactResult {
	if v.Crash.Crashed || len(contacts) == 0 {
		return ImpactResult{}
	}

	// Velocity lives in road axes: ForwardSpeed is down-track whatever the
	// yaw offset. Body axes only matter for where the hit lands.
	vel := f.Forward.Mul(v.ForwardSpeed).Add(f.Right.Mul(v.LateralSpeed))

	best := -1
	bestImpact := 0.0
	for i, c := range contacts {
		// Receding or glancing contacts carry no impact.
		vi := math.Max(0, -vel.Dot(c.Normal))
		if vi > bestImpact {
			bestImpact = vi
			best = i
		}
	}
	if best < 0 || bestImpact <= 0 {
		return ImpactResult{}
	}
	c := contacts[best]

	applyImpulse(v, c, bestImpact, f.Forward, f.Right)

	bodyFwd, bodyRight := bodyAxes(v, f)
	energy := accumulateDamage(v, c, bestImpact, bodyFwd, bodyRight)

	return ImpactResult{
		Applied:     true,
		ImpactSpeed: bestImpact,
		Severity:    c.Severity,
		Energy:      energy,
	}
}

// applyImpulse converts the contact into a speed-weighted scalar impulse.
// The forward loss is clamped at the speed floor: an impact can slow the
// run, never stop it.
func applyImpulse(v *VehicleState, c HazardContact, vImpact float64, fwd, right mgl64.Vec3) {
	j := ImpulseScale * vImpact * (0.5 + c.Severity) * (0.5 + 0.5*c.MassFactor)
	impulse := c.Normal.Mul(j)
	iForward := impulse.Dot(fwd)
	iLateral := impulse.Dot(right)

	v.LateralSpeed += iLateral / VirtualMass
	v.LateralSpeed = clampF(v.LateralSpeed, -MaxLateralSpeed, MaxLateralSpeed)

	v.ForwardSpeed -= math.Abs(iForward) / VirtualMass
	if v.ForwardSpeed < MinForwardSpeed {
		v.ForwardSpeed = MinForwardSpeed
	}

	// Instant yaw kick, scaled down as speed rises. Visual drama only; the
	// yaw integrator damps it back out.
	v.YawRate += YawKickScale * iLateral / (v.ForwardSpeed + YawKickEps)
	v.YawRate = clampF(v.YawRate, -MaxYawRate, MaxYawRate)
}

// accumulateDamage distributes energy-based damage into the directional
// zones and transfers wear into component health. Returns the energy added.
func accumulateDamage(v *VehicleState, c HazardContact, vImpact float64, fwd, right mgl64.Vec3) float64 {
	energy := DamageScale * vImpact * vImpact * c.Severity
	if energy <= 0 {
		return 0
	}

	wFront := math.Max(0, -c.Normal.Dot(fwd))
	wRear := math.Max(0, c.Normal.Dot(fwd))
	wRight := math.Max(0, -c.Normal.Dot(right))
	wLeft := math.Max(0, c.Normal.Dot(right))
	sum := wFront + wRear + wRight + wLeft
	if sum < 1e-9 {
		wFront, sum = 1, 1
	}
	wFront /= sum
	wRear /= sum
	wRight /= sum
	wLeft /= sum

	d := &v.Damage
	d.Front += energy * wFront
	d.Rear += energy * wRear
	d.Left += energy * wLeft
	d.Right += energy * wRight
	d.Total += energy

	h := &v.Health
	h.Steering = wearDown(h.Steering, energy*wFront*TransferFrontSteering)
	h.Transmission = wearDown(h.Transmission, energy*wRear*TransferRearTransmission)
	h.Suspension = wearDown(h.Suspension, energy*(wLeft+wRight)*TransferSideSuspension)
	h.Engine = wearDown(h.Engine, energy*TransferTotalEngine)
	h.Tires = wearDown(h.Tires, energy*TransferAnyTires)

	return energy
}

func wearDown(health, damage float64) float64 {
	health -= damage * DamageToHealth
	if health < 0 {
		return 0
	}
	return health
}
