package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

type SegmentKind int

const (
	SegmentStraight SegmentKind = iota
	SegmentCurve
	SegmentTunnel
	SegmentOverpass
	SegmentFork
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentStraight:
		return "straight"
	case SegmentCurve:
		return "curve"
	case SegmentTunnel:
		return "tunnel"
	case SegmentOverpass:
		return "overpass"
	case SegmentFork:
		return "fork"
	}
	return "unknown"
}

// Frame is the local road frame at a longitudinal distance.
type Frame struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Right    mgl64.Vec3
	Up       mgl64.Vec3
}

// TrackGapError reports a frame query outside the generated window. It marks
// a broken generate-ahead contract, not a runtime condition to retry.
type TrackGapError struct {
	Distance float64
	Trailing float64
	Frontier float64
}

func (e *TrackGapError) Error() string {
	return fmt.Sprintf("track gap: no segment at %.1fm (generated %.1f..%.1f)",
		e.Distance, e.Trailing, e.Frontier)
}

// ForkState tracks a pending branch on a fork segment. The diverging branch
// peels off to the right via a quadratic offset; the straight continuation is
// the segment's own curve.
type ForkState struct {
	Separation float64 // lateral split at the branch end
	CommitDist float64 // longitudinal point of no return
	Resolved   bool
	TookBranch bool
}

// TrackSegment is one procedurally generated road stretch. Immutable once
// generated except for fork resolution and lane blocking flags.
type TrackSegment struct {
	Index      int
	Start, End float64
	Curve      Hermite
	Kind       SegmentKind
	Difficulty float64
	ElevAmp    float64 // overpass height amplitude
	Lanes      []LaneSpline
	Fork       *ForkState

	blocked uint8 // lane blocked bitmask, set by the traffic collaborator
}

// Length returns the longitudinal span covered by the segment.
func (s *TrackSegment) Length() float64 { return s.End - s.Start }

// param maps a longitudinal distance to the curve parameter. Tangent scales
// stay in [0.4,0.6] so the normalized parameter tracks arc length closely
// enough for frame queries.
func (s *TrackSegment) param(dist float64) float64 {
	return clampF((dist-s.Start)/s.Length(), 0, 1)
}

func (s *TrackSegment) pointAt(t float64) mgl64.Vec3 {
	p := s.Curve.Point(t)
	if s.ElevAmp != 0 {
		p = p.Add(mgl64.Vec3{0, s.ElevAmp * math.Sin(math.Pi*t), 0})
	}
	if s.Fork != nil && s.Fork.Resolved && s.Fork.TookBranch {
		p = p.Add(s.rawRight(t).Mul(s.Fork.Separation * t * t))
	}
	return p
}

func (s *TrackSegment) velocityAt(t float64) mgl64.Vec3 {
	v := s.Curve.Velocity(t)
	if s.ElevAmp != 0 {
		v = v.Add(mgl64.Vec3{0, s.ElevAmp * math.Pi * math.Cos(math.Pi*t), 0})
	}
	return v
}

func (s *TrackSegment) accelAt(t float64) mgl64.Vec3 {
	a := s.Curve.Acceleration(t)
	if s.ElevAmp != 0 {
		a = a.Add(mgl64.Vec3{0, -s.ElevAmp * math.Pi * math.Pi * math.Sin(math.Pi*t), 0})
	}
	return a
}

// maxCurvature samples the effective centerline curvature, elevation
// included; Curve.MaxSampledCurvature sees only the planar curve.
func (s *TrackSegment) maxCurvature(n int) float64 {
	if n < 2 {
		n = 2
	}
	maxK := 0.0
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n-1)
		v := s.velocityAt(t)
		speed := v.Len()
		if speed < 1e-9 {
			continue
		}
		if k := v.Cross(s.accelAt(t)).Len() / (speed * speed * speed); k > maxK {
			maxK = k
		}
	}
	return maxK
}

// rawRight is the right vector of the unbranched centerline, used to apply
// the fork offset without recursing through the branched frame.
func (s *TrackSegment) rawRight(t float64) mgl64.Vec3 {
	fwd := s.velocityAt(t)
	if fwd.Len() < 1e-9 {
		fwd = s.Curve.T0
	}
	fwd = fwd.Normalize()
	right := fwd.Cross(mgl64.Vec3{0, 1, 0})
	if right.Len() < 1e-9 {
		right = mgl64.Vec3{1, 0, 0}
	}
	return right.Normalize()
}

// frameAt builds the stable Frenet-like frame at parameter t.
func (s *TrackSegment) frameAt(t float64) Frame {
	fwd := s.velocityAt(t)
	if fwd.Len() < 1e-9 {
		fwd = s.Curve.T0
	}
	fwd = fwd.Normalize()
	right := fwd.Cross(mgl64.Vec3{0, 1, 0})
	if right.Len() < 1e-9 {
		right = mgl64.Vec3{1, 0, 0}
	}
	right = right.Normalize()
	up := right.Cross(fwd)
	return Frame{
		Position: s.pointAt(t),
		Forward:  fwd,
		Right:    right,
		Up:       up,
	}
}

// BranchOffsetAt returns the lateral displacement of the diverging branch at
// a longitudinal distance within the segment.
func (s *TrackSegment) BranchOffsetAt(dist float64) float64 {
	if s.Fork == nil {
		return 0
	}
	t := s.param(dist)
	return s.Fork.Separation * t * t
}

// TrackGenerator owns the segment chain. It extends ahead of the furthest
// vehicle and retires segments behind the trailing cleanup distance.
type TrackGenerator struct {
	seed     uint64
	segments []*TrackSegment

	nextIndex int
	frontier  float64
	endPos    mgl64.Vec3
	endDir    mgl64.Vec3
	laneCount int

	activeFork   *TrackSegment // fork segment awaiting commit, nil otherwise
	lastForkDist float64
}

// Per-draw salt constants. Each independent random decision hashes the world
// seed with its own salt so draws never correlate across features.
const (
	saltKind  = 0x5E67_0001
	saltShape = 0x5E67_0002
	saltLanes = 0x5E67_0003
	saltRetry = 0x5E67_0004
)

func NewTrackGenerator(seed uint64) *TrackGenerator {
	if seed == 0 {
		seed = 1
	}
	g := &TrackGenerator{
		seed:      seed,
		endPos:    mgl64.Vec3{0, 0, 0},
		endDir:    mgl64.Vec3{0, 0, 1},
		laneCount: 3,
	}
	return g
}

// Seed returns the generation seed.
func (g *TrackGenerator) Seed() uint64 { return g.seed }

// Frontier returns the furthest generated distance.
func (g *TrackGenerator) Frontier() float64 { return g.frontier }

// Trailing returns the earliest still-live distance.
func (g *TrackGenerator) Trailing() float64 {
	if len(g.segments) == 0 {
		return 0
	}
	return g.segments[0].Start
}

// SegmentCount returns the number of live segments.
func (g *TrackGenerator) SegmentCount() int { return len(g.segments) }

// Segments exposes the live chain read-only for snapshots.
func (g *TrackGenerator) Segments() []*TrackSegment { return g.segments }

// Advance is the per-tick barrier: generate until the frontier clears the
// furthest vehicle by GenerateAhead, then retire fully passed segments.
// Returns the retired segments so the caller can report teardown.
func (g *TrackGenerator) Advance(furthest float64) []*TrackSegment {
	for g.frontier < furthest+GenerateAhead {
		g.appendSegment()
	}

	var retired []*TrackSegment
	cut := furthest - CleanupBehind
	for len(g.segments) > 1 && g.segments[0].End < cut {
		seg := g.segments[0]
		// A fork left behind without commitment resolves to the main line.
		if seg == g.activeFork {
			seg.Fork.Resolved = true
			g.activeFork = nil
		}
		retired = append(retired, seg)
		g.segments[0] = nil
		g.segments = g.segments[1:]
	}
	return retired
}

// appendSegment generates the next segment from the current end frame.
// Curvature violations shrink the yaw draw and retry; on exhaustion the
// segment degrades to a straight piece. Generation never fails.
func (g *TrackGenerator) appendSegment() *TrackSegment {
	idx := g.nextIndex
	difficulty := difficultyAt(g.frontier)
	kind := g.rollKind(idx, difficulty)

	shape := NewRand(hashIndex(g.seed^saltShape, idx))
	length := shape.RangeF(SegMinLength, SegMaxLength)
	alpha := shape.RangeF(TangentScaleMin, TangentScaleMax)
	pitch := shape.RangeF(-MaxPitchDeflect, MaxPitchDeflect)

	yawMax := MaxYawDeflectAt(difficulty)
	switch kind {
	case SegmentStraight, SegmentTunnel:
		yawMax *= 0.25
	case SegmentOverpass, SegmentFork:
		yawMax *= 0.5
		pitch = 0
	}

	retry := NewRand(hashIndex(g.seed^saltRetry, idx))
	var curve Hermite
	endDir := g.endDir
	ok := false
	for attempt := 0; attempt <= MaxSegmentRetries; attempt++ {
		yaw := retry.RangeF(-yawMax, yawMax)
		dir1 := yawPitchRotate(g.endDir, yaw, pitch)
		curve = Hermite{
			P0: g.endPos,
			T0: g.endDir.Mul(length * alpha),
			P1: g.endPos.Add(g.endDir.Mul(length)),
			T1: dir1.Mul(length * alpha),
		}
		if curve.MaxSampledCurvature(CurvatureSamples) <= MaxCurvature {
			endDir = dir1
			ok = true
			break
		}
		yawMax *= 0.5
	}
	if !ok {
		// Straight fallback: zero deflection is always within the bound.
		curve = Hermite{
			P0: g.endPos,
			T0: g.endDir.Mul(length * alpha),
			P1: g.endPos.Add(g.endDir.Mul(length)),
			T1: g.endDir.Mul(length * alpha),
		}
		endDir = g.endDir
		kind = SegmentStraight
	}

	seg := &TrackSegment{
		Index:      idx,
		Start:      g.frontier,
		End:        g.frontier + length,
		Curve:      curve,
		Kind:       kind,
		Difficulty: difficulty,
	}
	if kind == SegmentOverpass {
		// The vertical bump adds curvature the planar retry never saw;
		// flatten it until the combined centerline honors the bound.
		seg.ElevAmp = OverpassAmplitude
		for seg.ElevAmp > 0.5 && seg.maxCurvature(CurvatureSamples) > MaxCurvature {
			seg.ElevAmp *= 0.5
		}
		if seg.maxCurvature(CurvatureSamples) > MaxCurvature {
			seg.ElevAmp = 0
		}
	}
	if kind == SegmentFork {
		seg.Fork = &ForkState{
			Separation: ForkSeparation,
			CommitDist: seg.Start + ForkCommitFraction*length,
		}
		g.activeFork = seg
		g.lastForkDist = seg.Start
	}
	seg.Lanes = buildLanes(seg, g.rollLaneCount(idx))

	g.segments = append(g.segments, seg)
	g.frontier = seg.End
	g.endPos = curve.P1
	g.endDir = endDir
	g.nextIndex++
	return seg
}

func (g *TrackGenerator) rollKind(idx int, difficulty float64) SegmentKind {
	r := NewRand(hashIndex(g.seed^saltKind, idx))
	roll := r.Float64()

	forkAllowed := g.activeFork == nil &&
		g.frontier > MinForkDistance &&
		g.frontier-g.lastForkDist > MinForkDistance
	if forkAllowed && roll < 0.05 {
		return SegmentFork
	}
	if roll < 0.12 {
		return SegmentTunnel
	}
	if roll < 0.20 && g.frontier > 500 {
		return SegmentOverpass
	}
	// Curves grow more common as difficulty ramps.
	if roll < 0.20+0.5*(0.4+0.6*difficulty) {
		return SegmentCurve
	}
	return SegmentStraight
}

// rollLaneCount keeps the lane count sticky: most segments inherit the
// previous width, occasionally widening or narrowing by one.
func (g *TrackGenerator) rollLaneCount(idx int) int {
	r := NewRand(hashIndex(g.seed^saltLanes, idx))
	if r.Float64() < 0.85 {
		return g.laneCount
	}
	n := g.laneCount + r.Range(-1, 1)
	g.laneCount = clamp(n, MinLaneCount, MaxLaneCount)
	return g.laneCount
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// segmentAt locates the live segment covering dist. Pure read: per-vehicle
// dynamics updates query frames concurrently.
func (g *TrackGenerator) segmentAt(dist float64) (*TrackSegment, error) {
	if len(g.segments) == 0 || dist < g.segments[0].Start || dist >= g.frontier {
		return nil, &TrackGapError{Distance: dist, Trailing: g.Trailing(), Frontier: g.frontier}
	}
	i := sort.Search(len(g.segments), func(i int) bool {
		return g.segments[i].End > dist
	})
	if i >= len(g.segments) {
		i = len(g.segments) - 1
	}
	return g.segments[i], nil
}

// FrameAt returns the local road frame at a longitudinal distance.
func (g *TrackGenerator) FrameAt(dist float64) (Frame, error) {
	seg, err := g.segmentAt(dist)
	if err != nil {
		return Frame{}, err
	}
	return seg.frameAt(seg.param(dist)), nil
}

// MagnetismScaleAt attenuates lane magnetism on a fork approach so the
// centering spring cannot fight the driver's branch commitment.
func (g *TrackGenerator) MagnetismScaleAt(dist float64) float64 {
	seg, err := g.segmentAt(dist)
	if err != nil || seg.Fork == nil || seg.Fork.Resolved {
		return 1
	}
	span := seg.Fork.CommitDist - seg.Start
	if span <= 0 {
		return 1
	}
	return 1 - ForkMagnetismDrop*smoothstep01((dist-seg.Start)/span)
}

// PendingFork returns the unresolved fork segment, if any.
func (g *TrackGenerator) PendingFork() *TrackSegment {
	if g.activeFork != nil && !g.activeFork.Fork.Resolved {
		return g.activeFork
	}
	return nil
}

// CommitFork resolves the pending fork. Taking the branch rebases the chain:
// everything generated past the fork belonged to the declined continuation
// and is torn down, and generation re-anchors at the branch end. Returns the
// segments discarded by the rebase.
func (g *TrackGenerator) CommitFork(takeBranch bool) []*TrackSegment {
	seg := g.PendingFork()
	if seg == nil {
		return nil
	}
	seg.Fork.Resolved = true
	seg.Fork.TookBranch = takeBranch
	g.activeFork = nil
	if !takeBranch {
		return nil
	}

	var dropped []*TrackSegment
	for i := len(g.segments) - 1; i >= 0; i-- {
		if g.segments[i].Index <= seg.Index {
			break
		}
		dropped = append(dropped, g.segments[i])
		g.segments[i] = nil
		g.segments = g.segments[:i]
	}

	end := seg.frameAt(1)
	g.frontier = seg.End
	g.endPos = end.Position
	g.endDir = end.Forward
	return dropped
}

// difficultyAt maps driven distance to generation difficulty. The opening
// stages are a hand-tuned ramp; past them difficulty saturates toward 1.
func difficultyAt(dist float64) float64 {
	stages := [...]float64{0.15, 0.25, 0.35, 0.45, 0.55, 0.65, 0.75, 0.85}
	stage := int(dist / 2000)
	if stage < len(stages) {
		return stages[stage]
	}
	over := dist - float64(len(stages))*2000
	return 0.85 + 0.15*(1-math.Exp(-over/8000))
}
