package sim

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Hermite is a cubic curve defined by two endpoints and two tangents.
// Road centerlines and lane offset curves are all Hermite pieces.
type Hermite struct {
	P0, T0, P1, T1 mgl64.Vec3
}

// Point evaluates the curve at t in [0,1].
func (h Hermite) Point(t float64) mgl64.Vec3 {
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return h.P0.Mul(h00).Add(h.T0.Mul(h10)).Add(h.P1.Mul(h01)).Add(h.T1.Mul(h11))
}

// Velocity is the first derivative dP/dt.
func (h Hermite) Velocity(t float64) mgl64.Vec3 {
	t2 := t * t
	d00 := 6*t2 - 6*t
	d10 := 3*t2 - 4*t + 1
	d01 := -6*t2 + 6*t
	d11 := 3*t2 - 2*t
	return h.P0.Mul(d00).Add(h.T0.Mul(d10)).Add(h.P1.Mul(d01)).Add(h.T1.Mul(d11))
}

// Acceleration is the second derivative d²P/dt².
func (h Hermite) Acceleration(t float64) mgl64.Vec3 {
	a00 := 12*t - 6
	a10 := 6*t - 4
	a01 := -12*t + 6
	a11 := 6*t - 2
	return h.P0.Mul(a00).Add(h.T0.Mul(a10)).Add(h.P1.Mul(a01)).Add(h.T1.Mul(a11))
}

// Curvature returns κ(t) = |P'×P''| / |P'|³.
func (h Hermite) Curvature(t float64) float64 {
	v := h.Velocity(t)
	a := h.Acceleration(t)
	speed := v.Len()
	if speed < 1e-9 {
		return 0
	}
	return v.Cross(a).Len() / (speed * speed * speed)
}

// MaxSampledCurvature evaluates curvature at n evenly spaced parameters and
// returns the largest value found.
func (h Hermite) MaxSampledCurvature(n int) float64 {
	if n < 2 {
		n = 2
	}
	maxK := 0.0
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		if k := h.Curvature(t); k > maxK {
			maxK = k
		}
	}
	return maxK
}

// ChordLength returns the straight-line distance between the endpoints.
func (h Hermite) ChordLength() float64 {
	return h.P1.Sub(h.P0).Len()
}

// yawPitchRotate rotates dir by yaw about +Y, then pitches it toward/away
// from the horizontal plane. dir is assumed normalized.
func yawPitchRotate(dir mgl64.Vec3, yaw, pitch float64) mgl64.Vec3 {
	sy, cy := math.Sin(yaw), math.Cos(yaw)
	x := dir.X()*cy + dir.Z()*sy
	z := -dir.X()*sy + dir.Z()*cy
	out := mgl64.Vec3{x, dir.Y(), z}
	if pitch != 0 {
		sp, cp := math.Sin(pitch), math.Cos(pitch)
		horiz := math.Sqrt(out.X()*out.X() + out.Z()*out.Z())
		if horiz > 1e-9 {
			newHoriz := horiz*cp - out.Y()*sp
			newY := horiz*sp + out.Y()*cp
			scale := newHoriz / horiz
			out = mgl64.Vec3{out.X() * scale, newY, out.Z() * scale}
		}
	}
	return out.Normalize()
}
