package sim

import "math"

// reconcileLanes pulls lane bookkeeping back in range when a segment narrows
// the road, so magnetism never targets a lane that no longer exists. A
// transition into a vanished lane collapses onto the outermost surviving
// lane; if that is also its origin, the transition is dropped.
func reconcileLanes(v *VehicleState, laneCount int) {
	outer := laneCount - 1
	if outer < 0 {
		return
	}
	if v.Lane > outer {
		v.Lane = outer
	}
	lc := &v.Change
	if !lc.Active {
		return
	}
	if lc.From > outer {
		lc.From = outer
	}
	if lc.To > outer {
		lc.To = outer
	}
	if lc.From == lc.To {
		v.Lane = lc.To
		*lc = LaneChange{}
	}
}

// updateLaneChange starts, advances, aborts, or completes a lane transition
// and returns the smoothstep blend λ for this tick. Steering authority is
// attenuated by (1-λ) while a transition runs.
func updateLaneChange(v *VehicleState, in ControlInput, ctx RoadContext, dt float64) float64 {
	lc := &v.Change

	if lc.Active {
		lc.Elapsed += dt
		t := lc.Progress()

		// A hard counter-steer reverses the transition by reflecting
		// progress, so the abort replays the blend backwards instead of
		// snapping.
		dir := signF(float64(lc.To - lc.From))
		if math.Abs(in.Steer) > CounterSteerAbort && signF(in.Steer) == -dir {
			lc.From, lc.To = lc.To, lc.From
			lc.Elapsed = lc.Duration * (1 - t)
			t = lc.Progress()
		}

		if t >= 1 {
			v.Lane = lc.To
			*lc = LaneChange{}
			return 0
		}
		return smoothstep01(t)
	}

	if math.Abs(in.Steer) <= LaneChangeSteer {
		return 0
	}
	target := v.Lane + int(signF(in.Steer))
	if target < 0 || target >= ctx.LaneCount {
		return 0
	}
	if ctx.LaneBlocked != nil && ctx.LaneBlocked(target) {
		return 0
	}

	lc.Active = true
	lc.From = v.Lane
	lc.To = target
	lc.Elapsed = 0
	lc.Duration = clampF(LaneChangeBase*(v.ForwardSpeed/RefSpeed), LaneChangeMinTime, LaneChangeMaxTime)
	return 0
}

// targetLateral is the magnetism goal: the lane centerline, or the smoothstep
// blend between the two lane centerlines mid-transition.
func targetLateral(v *VehicleState, laneCount int, lambda float64) float64 {
	if v.Change.Active {
		from := laneOffset(v.Change.From, laneCount)
		to := laneOffset(v.Change.To, laneCount)
		return lerpF(from, to, lambda)
	}
	return laneOffset(v.Lane, laneCount)
}
