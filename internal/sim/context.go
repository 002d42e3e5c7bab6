package sim

import (
	"math"
	"sync"
)

// Config selects the deterministic inputs of a run. The 32-bit seed plus the
// recorded input streams fully determine every trajectory.
type Config struct {
	Seed    uint32
	Workers int // dynamics integration workers; <=1 runs serially
}

// ReplicationSink receives per-tick snapshots for network replication.
// Replication itself (transport, rollback) is out of scope; this is only the
// wiring point.
type ReplicationSink interface {
	PushSnapshot(Snapshot)
}

// Simulation owns the track generator, the vehicle table, and the damage
// pipeline, and drives them in strict tick order. There are no hidden
// globals: all run state lives here.
type Simulation struct {
	seed  uint32
	tick  uint64
	Track *TrackGenerator
	Bus   *EventBus

	vehicles    []*VehicleState
	controllers []Controller
	mods        []HandlingModifiers
	deforms     []DeformState
	contacts    [][]HazardContact
	failedMask  []uint8
	prevLane    []int

	workers int
	repl    ReplicationSink
}

// Component bit positions for failure-event tracking.
var componentNames = [...]string{"suspension", "steering", "tires", "engine", "transmission"}

func componentMask(h ComponentHealth) uint8 {
	var m uint8
	for i, v := range [...]float64{h.Suspension, h.Steering, h.Tires, h.Engine, h.Transmission} {
		if v < ComponentFailThreshold {
			m |= 1 << uint(i)
		}
	}
	return m
}

// New builds a simulation and generates the opening track window.
func New(cfg Config) *Simulation {
	s := &Simulation{
		seed:    cfg.Seed,
		Track:   NewTrackGenerator(uint64(cfg.Seed)),
		Bus:     NewEventBus(),
		workers: cfg.Workers,
	}
	s.Track.Advance(0)
	return s
}

// Seed returns the world seed.
func (s *Simulation) Seed() uint32 { return s.seed }

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() uint64 { return s.tick }

// SetReplicationSink attaches the replication stub.
func (s *Simulation) SetReplicationSink(r ReplicationSink) { s.repl = r }

// AddVehicle registers a vehicle in the given lane with its input source and
// returns its index. Player, traffic, and ghost vehicles all go through
// here; only the controller differs.
func (s *Simulation) AddVehicle(lane int, ctrl Controller) int {
	count := s.Track.laneCountAt(0)
	lane = clamp(lane, 0, count-1)
	v := NewVehicleState(lane, count)
	if f, err := s.Track.FrameAt(0); err == nil {
		v.frame = f
		v.hasFrame = true
		v.placeInWorld(f)
		v.PrevPosition = v.Position
		v.PrevRotation = v.Rotation
	}

	s.vehicles = append(s.vehicles, v)
	s.controllers = append(s.controllers, ctrl)
	s.mods = append(s.mods, neutralModifiers())
	s.deforms = append(s.deforms, DeformState{})
	s.contacts = append(s.contacts, nil)
	s.failedMask = append(s.failedMask, 0)
	s.prevLane = append(s.prevLane, v.Lane)
	return len(s.vehicles) - 1
}

// Vehicle returns the live state record. Callers outside the core should
// prefer Snapshot.
func (s *Simulation) Vehicle(i int) *VehicleState { return s.vehicles[i] }

// VehicleCount returns the number of registered vehicles.
func (s *Simulation) VehicleCount() int { return len(s.vehicles) }

// Deform returns the cosmetic deformation springs for a vehicle.
func (s *Simulation) Deform(i int) *DeformState { return &s.deforms[i] }

// QueueContact hands the pipeline a narrow-phase contact for resolution at
// the end of the current tick's Step.
func (s *Simulation) QueueContact(vehicle int, c HazardContact) {
	if vehicle < 0 || vehicle >= len(s.contacts) {
		return
	}
	s.contacts[vehicle] = append(s.contacts[vehicle], c)
}

// ResetVehicle clears damage, health, and crash state and re-places the
// vehicle at the given distance/lane. Called by the external game-flow
// controller at a tick boundary after the crash sequence.
func (s *Simulation) ResetVehicle(i int, distance float64, lane int) {
	v := s.vehicles[i]
	count := s.Track.laneCountAt(distance)
	lane = clamp(lane, 0, count-1)

	f, err := s.Track.FrameAt(distance)
	if err != nil {
		f = v.frame
	}
	v.Reset(f.Position, v.Rotation)
	v.Distance = distance
	v.Lane = lane
	v.Lateral = laneOffset(lane, count)
	v.frame = f
	v.hasFrame = true
	v.placeInWorld(f)
	v.PrevPosition = v.Position
	v.PrevRotation = v.Rotation

	s.deforms[i].Reset()
	s.failedMask[i] = 0
	s.prevLane[i] = lane
	s.contacts[i] = s.contacts[i][:0]
}

// Step advances the whole simulation by one fixed tick, in strict order:
// track generation/cleanup (a barrier), per-vehicle dynamics, then contact
// and crash resolution against the post-movement state. Contacts queued for
// this tick are consumed and cleared.
func (s *Simulation) Step() {
	furthest := 0.0
	for _, v := range s.vehicles {
		if v.Distance > furthest {
			furthest = v.Distance
		}
	}
	for _, seg := range s.Track.Advance(furthest) {
		s.Bus.Emit(Event{Type: EventSegmentRetired, Tick: s.tick, Segment: seg.Index})
	}

	// Handling modifiers: the damage pipeline's read-only coupling into the
	// integrator, computed once from last tick's damage state.
	for i, v := range s.vehicles {
		s.mods[i] = ComputeModifiers(v.Damage, v.Health)
	}

	s.runDynamics()
	s.resolveFork()

	// Post-movement resolution in fixed vehicle order; damage accumulation
	// order never depends on scheduling.
	for i, v := range s.vehicles {
		if f, err := s.Track.FrameAt(v.Distance); err == nil {
			v.frame = f
			v.hasFrame = true
		}
		// On a track gap the last known frame holds; the generate-ahead
		// barrier makes this unreachable in a correct run.
		if v.hasFrame {
			v.placeInWorld(v.frame)
		}

		res := ResolveContacts(v, v.frame, s.contacts[i])
		s.contacts[i] = s.contacts[i][:0]

		if mask := componentMask(v.Health); mask != s.failedMask[i] {
			for bit, name := range componentNames {
				if mask&(1<<uint(bit)) != 0 && s.failedMask[i]&(1<<uint(bit)) == 0 {
					s.Bus.Emit(Event{Type: EventComponentFailed, Vehicle: i, Tick: s.tick, Component: name})
				}
			}
			s.failedMask[i] = mask
		}

		if reason := evaluateCrash(v, res, s.tick); reason != CrashNone {
			s.Bus.Emit(Event{Type: EventCrash, Vehicle: i, Tick: s.tick, Reason: reason})
		}

		if v.Lane != s.prevLane[i] {
			s.Bus.Emit(Event{Type: EventLaneChanged, Vehicle: i, Tick: s.tick, Value: float64(v.Lane)})
			s.prevLane[i] = v.Lane
		}

		s.deforms[i].Update(v.Damage, TickSeconds)
	}

	s.tick++
	if s.repl != nil {
		s.repl.PushSnapshot(s.Snapshot())
	}
}

// runDynamics integrates every vehicle for this tick. Updates are
// embarrassingly parallel: each worker writes only its own vehicles' records
// and reads the track through race-free lookups, so the result is
// bit-identical to the serial order.
func (s *Simulation) runDynamics() {
	n := len(s.vehicles)
	if n == 0 {
		return
	}
	if s.workers <= 1 || n == 1 {
		for i := 0; i < n; i++ {
			s.stepOne(i)
		}
		return
	}

	workers := s.workers
	if workers > n {
		workers = n
	}
	var wg sync.WaitGroup
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		if lo >= hi {
			break
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				s.stepOne(i)
			}
		}(lo, hi)
	}
	wg.Wait()
}

func (s *Simulation) stepOne(i int) {
	v := s.vehicles[i]
	in := s.controllers[i].Control(s.tick)
	dist := v.Distance
	ctx := RoadContext{
		Mods:        s.mods[i],
		MagnetScale: s.Track.MagnetismScaleAt(dist),
		LaneCount:   s.Track.laneCountAt(dist),
		LaneBlocked: func(lane int) bool { return s.Track.laneBlockedAt(dist, lane) },
	}
	StepVehicle(v, in, ctx, TickSeconds)
}

// resolveFork commits a pending fork once the lead vehicle passes the point
// of no return. The branch is taken when the driver has pulled far enough
// toward it; the declined side's segments are torn down.
func (s *Simulation) resolveFork() {
	seg := s.Track.PendingFork()
	if seg == nil || len(s.vehicles) == 0 {
		return
	}
	lead := s.vehicles[0]
	for _, v := range s.vehicles[1:] {
		if v.Distance > lead.Distance {
			lead = v
		}
	}
	if lead.Distance < seg.Fork.CommitDist {
		return
	}

	takeBranch := lead.Lateral > ForkChooseOffset
	dropped := s.Track.CommitFork(takeBranch)
	for _, d := range dropped {
		s.Bus.Emit(Event{Type: EventSegmentRetired, Tick: s.tick, Segment: d.Index})
	}
	s.Bus.Emit(Event{
		Type:    EventForkCommitted,
		Tick:    s.tick,
		Segment: seg.Index,
		Value:   boolToFloat(takeBranch),
	})

	if takeBranch {
		// The centerline jumps onto the branch; shift lateral offsets so
		// world positions stay continuous through the commit.
		for _, v := range s.vehicles {
			if v.Distance >= seg.Start && v.Distance < seg.End {
				v.Lateral -= seg.BranchOffsetAt(v.Distance)
			}
		}
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// FurthestDistance returns the lead vehicle distance, mostly for tests and
// runner summaries.
func (s *Simulation) FurthestDistance() float64 {
	furthest := 0.0
	for _, v := range s.vehicles {
		furthest = math.Max(furthest, v.Distance)
	}
	return furthest
}
