package sim

import "github.com/go-gl/mathgl/mgl64"

// LaneSpline is a lane centerline derived from its segment by a constant
// offset along the local right vector. It shares the segment's
// parameterization and lifetime.
type LaneSpline struct {
	Index  int
	Offset float64 // signed lateral offset from the road centerline
}

// buildLanes lays out count lanes symmetrically around the centerline.
func buildLanes(seg *TrackSegment, count int) []LaneSpline {
	lanes := make([]LaneSpline, count)
	for i := range lanes {
		lanes[i] = LaneSpline{
			Index:  i,
			Offset: laneOffset(i, count),
		}
	}
	return lanes
}

func laneOffset(index, count int) float64 {
	return (float64(index) - float64(count-1)/2) * LaneWidth
}

// PointAt evaluates the lane centerline at a longitudinal distance within
// the segment.
func (l LaneSpline) PointAt(seg *TrackSegment, dist float64) mgl64.Vec3 {
	f := seg.frameAt(seg.param(dist))
	return f.Position.Add(f.Right.Mul(l.Offset))
}

// LaneInfo is the occupancy view handed to the external traffic collaborator.
// The core tracks existence, width, and blocked flags; lane-choice scoring
// lives outside.
type LaneInfo struct {
	Index   int
	Offset  float64
	Width   float64
	Blocked bool
}

// LanesAt reports the lanes present at a longitudinal distance.
func (g *TrackGenerator) LanesAt(dist float64) ([]LaneInfo, error) {
	seg, err := g.segmentAt(dist)
	if err != nil {
		return nil, err
	}
	out := make([]LaneInfo, len(seg.Lanes))
	for i, l := range seg.Lanes {
		out[i] = LaneInfo{
			Index:   l.Index,
			Offset:  l.Offset,
			Width:   LaneWidth,
			Blocked: seg.blocked&(1<<uint(i)) != 0,
		}
	}
	return out, nil
}

// SetLaneBlocked flags a lane as blocked or clear at the given distance.
// Called by the external traffic/hazard collaborator; the core only consults
// the flag when validating lane-change targets.
func (g *TrackGenerator) SetLaneBlocked(dist float64, lane int, blocked bool) error {
	seg, err := g.segmentAt(dist)
	if err != nil {
		return err
	}
	if lane < 0 || lane >= len(seg.Lanes) {
		return nil
	}
	if blocked {
		seg.blocked |= 1 << uint(lane)
	} else {
		seg.blocked &^= 1 << uint(lane)
	}
	return nil
}

// laneCountAt returns the lane count at dist, falling back to a sane default
// inside a track gap.
func (g *TrackGenerator) laneCountAt(dist float64) int {
	seg, err := g.segmentAt(dist)
	if err != nil {
		return 3
	}
	return len(seg.Lanes)
}

// laneBlockedAt reports whether a lane is blocked at dist. Out-of-range
// lanes count as blocked.
func (g *TrackGenerator) laneBlockedAt(dist float64, lane int) bool {
	seg, err := g.segmentAt(dist)
	if err != nil {
		return true
	}
	if lane < 0 || lane >= len(seg.Lanes) {
		return true
	}
	return seg.blocked&(1<<uint(lane)) != 0
}
