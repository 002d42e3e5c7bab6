package sim

import "math"

// RoadContext is everything the integrator reads from outside the vehicle:
// per-tick road facts and the damage pipeline's handling modifiers. It is
// assembled by the simulation step and never written by the integrator.
type RoadContext struct {
	Mods        HandlingModifiers
	MagnetScale float64 // fork-approach attenuation from the track generator
	LaneCount   int
	LaneBlocked func(lane int) bool // nil means all lanes clear
}

// StepVehicle advances one vehicle by dt. All state is road-relative
// (longitudinal distance, lateral offset, local speeds); world placement
// happens afterwards against the road frame at the new distance. The update
// touches only this vehicle's record, so vehicles integrate in parallel.
func StepVehicle(v *VehicleState, raw ControlInput, ctx RoadContext, dt float64) {
	if v.Crash.Crashed {
		return
	}
	in := raw.Clamped()

	reconcileLanes(v, ctx.LaneCount)
	lambda := updateLaneChange(v, in, ctx, dt)

	stepForwardSpeed(v, in, ctx.Mods, dt)
	stepYaw(v, in, ctx.Mods, lambda, dt)
	stepSlip(v, ctx.Mods, dt)
	stepMagnetism(v, in, ctx, lambda, dt)

	v.Distance += v.ForwardSpeed * dt
	v.Lateral += v.LateralSpeed * dt
	v.AngularSpeed = v.YawRate
}

// stepForwardSpeed integrates throttle, brake, and drag, then applies the
// hard clamp. The floor is the signature invariant: the run never stalls,
// whatever the spin state. Overdrive lifts the ceiling and instead decays
// acceleration asymptotically with speed.
func stepForwardSpeed(v *VehicleState, in ControlInput, mods HandlingModifiers, dt float64) {
	accel := in.Throttle * BaseAccel * mods.Accel
	if v.Overdrive {
		accel = in.Throttle * OverdriveAccel * mods.Accel / (1 + v.ForwardSpeed/RefSpeed)
	}
	v.ForwardSpeed += accel * dt
	v.ForwardSpeed -= in.Brake * BrakeDecel * dt
	v.ForwardSpeed *= math.Exp(-DragCoeff * dt)

	if v.Overdrive {
		if v.ForwardSpeed < MinForwardSpeed {
			v.ForwardSpeed = MinForwardSpeed
		}
	} else {
		v.ForwardSpeed = clampF(v.ForwardSpeed, MinForwardSpeed, MaxForwardSpeed)
	}
}

// stepYaw integrates the second-order torque model. YawOffset is unbounded;
// a held handbrake feeds drift torque, and releasing it blends in a recovery
// torque until the drift exit thresholds are met.
func stepYaw(v *VehicleState, in ControlInput, mods HandlingModifiers, lambda, dt float64) {
	effSteer := in.Steer * (1 - lambda)
	steerTorque := SteerGain * mods.SteerGain * effSteer * (v.ForwardSpeed / RefSpeed)
	yawAccel := steerTorque - YawDamping*v.YawRate

	if in.Handbrake {
		v.Drifting = true
		yawAccel += DriftGain * signF(in.Steer) * math.Sqrt(v.ForwardSpeed)
	} else if v.Drifting {
		yawAccel -= RecoveryGain * mods.RecoveryRate * v.YawOffset
		if math.Abs(v.YawOffset) < DriftExitYaw && math.Abs(v.YawRate) < DriftExitRate {
			v.Drifting = false
			v.SlipAngle = 0
		}
	}

	v.YawRate += yawAccel * dt
	v.YawRate = clampF(v.YawRate, -MaxYawRate, MaxYawRate)
	v.YawOffset += v.YawRate * dt
}

// stepSlip drives lateral speed from the slip angle while drifting and decays
// it toward grip otherwise.
func stepSlip(v *VehicleState, mods HandlingModifiers, dt float64) {
	if v.Drifting {
		v.SlipAngle = v.YawOffset - math.Atan2(v.LateralSpeed, v.ForwardSpeed)
		v.LateralSpeed += SlipGain * mods.SlipGain * math.Sin(v.SlipAngle) * v.ForwardSpeed * dt
		v.LateralSpeed = clampF(v.LateralSpeed, -MaxLateralSpeed, MaxLateralSpeed)
		return
	}
	v.LateralSpeed *= math.Exp(-LateralDecay * dt)
}

// stepMagnetism applies the critically damped centering spring toward the
// target lane plus the soft road-edge pushback. Strength is the product of
// the input/autopilot/speed/handbrake/damage factors; it runs every tick
// regardless of steering.
func stepMagnetism(v *VehicleState, in ControlInput, ctx RoadContext, lambda, dt float64) {
	target := targetLateral(v, ctx.LaneCount, lambda)
	xErr := v.Lateral - target

	omega := MagnetismOmega * ctx.Mods.Omega
	mInput := 1 - math.Abs(in.Steer)
	mAuto := 1.0
	if v.Autopilot {
		mAuto = AutopilotBoost
	}
	mSpeed := clampF(math.Sqrt(v.ForwardSpeed/RefSpeed), SpeedFactorMin, SpeedFactorMax)
	mHand := 1.0
	if in.Handbrake {
		mHand = HandbrakeMagnetism
	}
	mag := mInput * mAuto * mSpeed * mHand * ctx.Mods.Magnetism * ctx.MagnetScale

	aLat := mag * (-omega*omega*xErr - 2*omega*v.LateralSpeed)
	v.LateralSpeed += aLat * dt

	// Soft edge force beyond 85% of the road half-width. Quadratic, so it
	// stiffens with penetration but never acts as a hard wall.
	halfRoad := float64(ctx.LaneCount) * LaneWidth / 2
	edge := halfRoad * EdgeZoneFraction
	if over := math.Abs(v.Lateral) - edge; over > 0 {
		v.LateralSpeed -= signF(v.Lateral) * EdgeStiffness * over * over * dt
	}
}
