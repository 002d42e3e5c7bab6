package sim

import (
	"bytes"
	"math"
	"testing"
)

// scriptedController derives input purely from the tick and vehicle index, so
// two simulations built with it see identical streams.
func scriptedController(idx int) Controller {
	return ControlFunc(func(tick uint64) ControlInput {
		t := float64(tick) * TickSeconds
		return ControlInput{
			Steer:     math.Sin(t*0.7 + float64(idx)),
			Throttle:  0.5 + 0.5*math.Sin(t*0.3),
			Brake:     math.Max(0, math.Sin(t*0.11+float64(idx)*2)-0.8),
			Handbrake: tick%400 >= 380,
		}
	})
}

func queueScriptedContact(s *Simulation, i int) {
	v := s.Vehicle(i)
	f, err := s.Track.FrameAt(v.Distance)
	if err != nil {
		return
	}
	s.QueueContact(i, HazardContact{
		Severity:   0.3,
		MassFactor: 0.5,
		Normal:     f.Forward.Mul(-1),
	})
}

func runScripted(workers, vehicles, ticks int) *Simulation {
	s := New(Config{Seed: 31337, Workers: workers})
	for i := 0; i < vehicles; i++ {
		s.AddVehicle(i%3, scriptedController(i))
	}
	for t := 0; t < ticks; t++ {
		if t > 0 && t%500 == 0 {
			for i := 0; i < vehicles; i++ {
				queueScriptedContact(s, i)
			}
		}
		s.Step()
	}
	return s
}

func sameVehicleState(a, b *VehicleState) bool {
	return a.Distance == b.Distance &&
		a.Lateral == b.Lateral &&
		a.Lane == b.Lane &&
		a.ForwardSpeed == b.ForwardSpeed &&
		a.LateralSpeed == b.LateralSpeed &&
		a.YawOffset == b.YawOffset &&
		a.YawRate == b.YawRate &&
		a.Drifting == b.Drifting &&
		a.Damage == b.Damage &&
		a.Health == b.Health &&
		a.Crash == b.Crash &&
		a.Position == b.Position
}

// Ten thousand ticks with scripted input and periodic impacts must be
// bit-identical between a serial run and a four-worker run.
func TestDeterministicAcrossWorkers(t *testing.T) {
	serial := runScripted(0, 4, 10000)
	parallel := runScripted(4, 4, 10000)

	for i := 0; i < serial.VehicleCount(); i++ {
		a, b := serial.Vehicle(i), parallel.Vehicle(i)
		if !sameVehicleState(a, b) {
			t.Errorf("vehicle %d diverged between serial and parallel runs:\n serial  %+v\n parallel %+v", i, a, b)
		}
	}
	if serial.Tick() != parallel.Tick() || serial.Track.SegmentCount() != parallel.Track.SegmentCount() {
		t.Error("track or tick state diverged between runs")
	}
}

// Recording a run's inputs and replaying the log from the same seed must
// reproduce the run exactly.
func TestReplayFromInputLog(t *testing.T) {
	log := NewInputLog()
	r := NewRand(4242)

	rec := New(Config{Seed: 2024})
	rec.AddVehicle(1, ControlFunc(func(uint64) ControlInput {
		in := ControlInput{
			Steer:     r.RangeF(-1, 1),
			Throttle:  r.Float64(),
			Brake:     math.Max(0, r.RangeF(-0.8, 0.2)),
			Handbrake: r.Float64() < 0.05,
		}
		log.Record(in)
		return in
	}))
	for i := 0; i < 3000; i++ {
		rec.Step()
	}

	// Round-trip the log through its text encoding first.
	var buf bytes.Buffer
	if err := log.Write(&buf); err != nil {
		t.Fatal(err)
	}
	replayLog, err := ReadInputLog(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if replayLog.Len() != 3000 {
		t.Fatalf("replay log holds %d ticks, want 3000", replayLog.Len())
	}

	rep := New(Config{Seed: 2024})
	rep.AddVehicle(1, replayLog)
	for i := 0; i < 3000; i++ {
		rep.Step()
	}

	if !sameVehicleState(rec.Vehicle(0), rep.Vehicle(0)) {
		t.Errorf("replay diverged:\n recorded %+v\n replayed %+v", rec.Vehicle(0), rep.Vehicle(0))
	}
}

func TestCrashEventAndReset(t *testing.T) {
	s := New(Config{Seed: 5})
	idx := s.AddVehicle(1, ControlFunc(func(uint64) ControlInput {
		return ControlInput{Throttle: 1}
	}))

	crashes := 0
	var reason CrashReason
	s.Bus.Subscribe(EventCrash, func(e Event) {
		crashes++
		reason = e.Reason
	})

	// Reach full-severity impact speed, then hit a lethal hazard head-on.
	for s.Vehicle(idx).ForwardSpeed < LethalImpactSpeed+5 {
		s.Step()
	}
	queueScriptedLethal(s, idx)
	s.Step()

	v := s.Vehicle(idx)
	if !v.Crash.Crashed || v.Crash.Reason != CrashLethalHazard {
		t.Fatalf("expected lethal-hazard crash, got %+v", v.Crash)
	}
	if crashes != 1 || reason != CrashLethalHazard {
		t.Fatalf("crash events = %d (reason %s), want exactly one", crashes, reason)
	}

	// A crashed vehicle is frozen and never re-crashes.
	frozen := v.Distance
	for i := 0; i < 100; i++ {
		queueScriptedLethal(s, idx)
		s.Step()
	}
	if v.Distance != frozen {
		t.Error("crashed vehicle kept moving")
	}
	if crashes != 1 {
		t.Errorf("crash re-emitted (%d events)", crashes)
	}

	s.ResetVehicle(idx, frozen, 1)
	if v.Crash.Crashed || v.Damage.Total != 0 || v.Health != fullHealth() {
		t.Errorf("reset left residual state: %+v", v.Crash)
	}
	if d := s.Deform(idx); d.Front.Offset != 0 {
		t.Error("reset left residual deformation")
	}
	s.Step()
	if v.Distance <= frozen {
		t.Error("vehicle did not move after reset")
	}
}

func queueScriptedLethal(s *Simulation, i int) {
	v := s.Vehicle(i)
	f, err := s.Track.FrameAt(v.Distance)
	if err != nil {
		return
	}
	s.QueueContact(i, HazardContact{
		Severity:   1,
		MassFactor: 1,
		Normal:     f.Forward.Mul(-1),
	})
}

func TestComponentFailedEventOnce(t *testing.T) {
	s := New(Config{Seed: 9})
	idx := s.AddVehicle(1, ControlFunc(func(uint64) ControlInput {
		return ControlInput{Throttle: 0.2}
	}))

	failed := map[string]int{}
	s.Bus.Subscribe(EventComponentFailed, func(e Event) {
		failed[e.Component]++
	})

	v := s.Vehicle(idx)
	for i := 0; i < 400 && !v.Crash.Crashed; i++ {
		// Repeated moderate front hits wear steering down past failure.
		s.QueueContact(idx, HazardContact{
			Severity:   0.6,
			MassFactor: 0.5,
			Normal:     mustFrame(s, v.Distance).Forward.Mul(-1),
		})
		s.Step()
	}

	if v.Health.Steering >= ComponentFailThreshold {
		t.Fatalf("steering never failed (%.3f)", v.Health.Steering)
	}
	if failed["steering"] != 1 {
		t.Errorf("steering failure emitted %d times, want once", failed["steering"])
	}
	for name, n := range failed {
		if n != 1 {
			t.Errorf("component %s failure emitted %d times", name, n)
		}
	}
}

func mustFrame(s *Simulation, dist float64) Frame {
	f, err := s.Track.FrameAt(dist)
	if err != nil {
		panic(err)
	}
	return f
}

func TestLaneChangeEvent(t *testing.T) {
	s := New(Config{Seed: 13})
	idx := s.AddVehicle(0, ControlFunc(func(tick uint64) ControlInput {
		if tick < 90 {
			return ControlInput{Steer: 0.6, Throttle: 1}
		}
		return ControlInput{Throttle: 1}
	}))

	changed := 0
	lane := -1
	s.Bus.Subscribe(EventLaneChanged, func(e Event) {
		changed++
		lane = int(e.Value)
	})

	for i := 0; i < 300; i++ {
		s.Step()
	}
	if changed == 0 {
		t.Fatal("no lane-change event")
	}
	if lane != s.Vehicle(idx).Lane {
		t.Errorf("last event lane %d, vehicle lane %d", lane, s.Vehicle(idx).Lane)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := New(Config{Seed: 101})
	s.AddVehicle(1, ControlFunc(func(uint64) ControlInput {
		return ControlInput{Throttle: 1}
	}))
	for i := 0; i < 60; i++ {
		s.Step()
	}

	snap := s.Snapshot()
	if snap.Tick != 60 || snap.Seed != 101 || len(snap.Vehicles) != 1 {
		t.Fatalf("snapshot header %+v", snap)
	}
	if snap.Vehicles[0].Distance != s.Vehicle(0).Distance {
		t.Error("snapshot distance does not match live state")
	}
	if len(snap.Segments) == 0 {
		t.Error("snapshot carries no track segments")
	}

	before := snap.Vehicles[0].Distance
	for i := 0; i < 60; i++ {
		s.Step()
	}
	if snap.Vehicles[0].Distance != before {
		t.Error("snapshot aliases live simulation state")
	}
}

// A vehicle stranded behind the retired window keeps its last known frame:
// it still integrates, but its world placement never snaps to a zero frame.
func TestTrackGapHoldsLastFrame(t *testing.T) {
	s := New(Config{Seed: 17})
	idx := s.AddVehicle(1, ControlFunc(func(uint64) ControlInput {
		return ControlInput{Throttle: 1}
	}))
	for i := 0; i < 120; i++ {
		s.Step()
	}
	v := s.Vehicle(idx)

	// Retire the road under the vehicle, then drop it behind the trailing
	// edge so every frame query misses.
	s.Track.Advance(8000)
	v.Distance = 10
	if _, err := s.Track.FrameAt(v.Distance); err == nil {
		t.Fatal("expected a track gap behind the trailing edge")
	}

	before := v.Position
	startDist := v.Distance
	for i := 0; i < 120; i++ {
		s.Step()
	}
	if v.Distance <= startDist+20 {
		t.Error("vehicle stopped integrating inside the gap")
	}
	if v.Position.Len() == 0 {
		t.Fatal("vehicle snapped to the origin frame")
	}
	if moved := v.Position.Sub(before).Len(); moved > 20 {
		t.Errorf("position jumped %.1fm inside the gap; the held frame should pin it", moved)
	}
}

func TestForkCommitUsesFurthestVehicle(t *testing.T) {
	coast := ControlFunc(func(uint64) ControlInput { return ControlInput{} })

	for seed := uint32(1); seed < 200; seed++ {
		s := New(Config{Seed: seed})
		s.AddVehicle(1, coast) // trails near the start
		front := s.AddVehicle(1, coast)

		fork := advanceToFork(s.Track, 12000)
		if fork == nil {
			continue
		}

		v := s.Vehicle(front)
		v.Distance = fork.Fork.CommitDist + 1
		v.Lateral = ForkChooseOffset + 2
		s.Step()

		if !fork.Fork.Resolved {
			t.Fatal("fork not committed by the furthest vehicle")
		}
		if !fork.Fork.TookBranch {
			t.Error("furthest vehicle's lateral pull did not select the branch")
		}
		return
	}
	t.Fatal("no fork generated in 200 seeds")
}

func TestInputLogRoundTrip(t *testing.T) {
	log := NewInputLog()
	frames := []ControlInput{
		{Steer: -1, Throttle: 1},
		{Steer: 0.5, Throttle: 0.25, Brake: 0.75},
		{Handbrake: true},
		{},
	}
	for _, f := range frames {
		log.Record(f)
	}

	var buf bytes.Buffer
	if err := log.Write(&buf); err != nil {
		t.Fatal(err)
	}
	got, err := ReadInputLog(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != len(frames) {
		t.Fatalf("round trip length %d, want %d", got.Len(), len(frames))
	}
	for i, want := range frames {
		if in := got.Control(uint64(i)); in != want {
			t.Errorf("tick %d: %+v, want %+v", i, in, want)
		}
	}
	if past := got.Control(uint64(len(frames) + 10)); past != (ControlInput{}) {
		t.Errorf("past-end read returned %+v, want coasting input", past)
	}
}
