package sim

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestHermiteEndpoints(t *testing.T) {
	h := Hermite{
		P0: mgl64.Vec3{1, 2, 3},
		T0: mgl64.Vec3{10, 0, 5},
		P1: mgl64.Vec3{4, 2, 50},
		T1: mgl64.Vec3{-3, 1, 8},
	}
	if d := h.Point(0).Sub(h.P0).Len(); d > 1e-12 {
		t.Errorf("Point(0) off endpoint by %.2e", d)
	}
	if d := h.Point(1).Sub(h.P1).Len(); d > 1e-12 {
		t.Errorf("Point(1) off endpoint by %.2e", d)
	}
	if d := h.Velocity(0).Sub(h.T0).Len(); d > 1e-12 {
		t.Errorf("Velocity(0) off tangent by %.2e", d)
	}
	if d := h.Velocity(1).Sub(h.T1).Len(); d > 1e-12 {
		t.Errorf("Velocity(1) off tangent by %.2e", d)
	}
}

func TestStraightSegmentCurvature(t *testing.T) {
	tangent := mgl64.Vec3{0, 0, 60}
	h := Hermite{
		P0: mgl64.Vec3{},
		T0: tangent,
		P1: mgl64.Vec3{0, 0, 60},
		T1: tangent,
	}
	for i := 0; i <= 10; i++ {
		tt := float64(i) / 10
		if k := h.Curvature(tt); k > 1e-12 {
			t.Fatalf("straight piece has curvature %.2e at t=%.1f", k, tt)
		}
	}
	if got := h.ChordLength(); math.Abs(got-60) > 1e-12 {
		t.Errorf("chord length %.3f, want 60", got)
	}
}

func TestYawPitchRotatePreservesLength(t *testing.T) {
	dir := mgl64.Vec3{0, 0, 1}
	for _, yaw := range []float64{-0.35, 0, 0.2, 0.35} {
		for _, pitch := range []float64{-0.1, 0, 0.1} {
			out := yawPitchRotate(dir, yaw, pitch)
			if math.Abs(out.Len()-1) > 1e-12 {
				t.Fatalf("yaw %.2f pitch %.2f: length %.12f", yaw, pitch, out.Len())
			}
		}
	}

	// Pure yaw keeps the direction in the horizontal plane.
	out := yawPitchRotate(dir, 0.3, 0)
	if math.Abs(out.Y()) > 1e-12 {
		t.Errorf("pure yaw produced vertical component %.2e", out.Y())
	}
	if math.Abs(math.Atan2(out.X(), out.Z())-0.3) > 1e-9 {
		t.Errorf("yaw angle off: %.4f", math.Atan2(out.X(), out.Z()))
	}
}
