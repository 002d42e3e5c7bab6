package sim

import "math"

// evaluateCrash runs the per-tick crash decision: five independent
// conditions, OR-ed, tested in fixed priority order so the first true
// condition names the reported reason. Spin state never appears here:
// spinning alone, at any yaw rate, cannot crash the vehicle.
func evaluateCrash(v *VehicleState, res ImpactResult, tick uint64) CrashReason {
	if v.Crash.Crashed {
		return CrashNone
	}

	reason := CrashNone
	switch {
	case res.Applied && res.Severity > LethalSeverity && res.ImpactSpeed > LethalImpactSpeed:
		reason = CrashLethalHazard
	case v.Damage.Total > CrashDamageLimit:
		reason = CrashTotalDamage
	case math.Abs(v.YawOffset) > CompoundYawLimit &&
		v.ForwardSpeed < MinForwardSpeed+SpeedFloorTolerance &&
		v.Damage.Total > CompoundDamage:
		reason = CrashCompoundFailure
	case v.Health.FailedCount() >= ComponentCascadeCount:
		reason = CrashComponentCascade
	case v.Health.Steering < ComponentFailThreshold || v.Health.Suspension < ComponentFailThreshold:
		reason = CrashCriticalComponent
	}

	if reason != CrashNone {
		v.Crash = CrashState{Crashed: true, Reason: reason, Tick: tick}
	}
	return reason
}
