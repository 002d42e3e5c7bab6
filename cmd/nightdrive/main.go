package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"nightdrive/internal/sim"
	"nightdrive/internal/telemetry"
)

func main() {
	var (
		seedFlag   = flag.Uint64("seed", 0, "32-bit world seed (default: NIGHTDRIVE_SEED env or 1)")
		ticks      = flag.Uint64("ticks", 3600, "number of fixed ticks to simulate")
		inputPath  = flag.String("input", "", "replay a recorded input log")
		recordPath = flag.String("record", "", "record the input stream to a file")
		workers    = flag.Int("workers", 1, "dynamics integration workers")
		listen     = flag.String("listen", "", "telemetry websocket address (off when empty)")
		fast       = flag.Bool("fast", false, "run flat out instead of real-time pacing")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "", log.LstdFlags)

	seed := uint32(1)
	if *seedFlag != 0 {
		seed = uint32(*seedFlag)
	} else if env := os.Getenv("NIGHTDRIVE_SEED"); env != "" {
		if v, err := strconv.ParseUint(env, 10, 32); err == nil {
			seed = uint32(v)
		}
	}

	var ctrl sim.Controller
	if *inputPath != "" {
		replay, err := sim.LoadInputLog(*inputPath)
		if err != nil {
			logger.Fatalf("[Runner] %v", err)
		}
		logger.Printf("[Runner] replaying %d ticks of input from %s", replay.Len(), *inputPath)
		ctrl = replay
	} else {
		ctrl = demoController(seed)
	}

	var recorded *sim.InputLog
	if *recordPath != "" {
		recorded = sim.NewInputLog()
		inner := ctrl
		ctrl = sim.ControlFunc(func(tick uint64) sim.ControlInput {
			in := inner.Control(tick)
			recorded.Record(in)
			return in
		})
	}

	s := sim.New(sim.Config{Seed: seed, Workers: *workers})
	s.Bus.Subscribe(sim.EventCrash, func(e sim.Event) {
		logger.Printf("[Runner] vehicle %d crashed at tick %d: %s", e.Vehicle, e.Tick, e.Reason)
	})
	s.Bus.Subscribe(sim.EventForkCommitted, func(e sim.Event) {
		side := "main"
		if e.Value > 0 {
			side = "branch"
		}
		logger.Printf("[Runner] fork at segment %d committed to %s", e.Segment, side)
	})
	player := s.AddVehicle(1, ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if *listen != "" {
		srv := telemetry.NewServer(logger)
		s.SetReplicationSink(srv)
		go func() {
			if err := srv.ListenAndServe(ctx, *listen); err != nil {
				logger.Printf("[Runner] telemetry: %v", err)
			}
		}()
	}

	logger.Printf("[Runner] seed=%d ticks=%d workers=%d", seed, *ticks, *workers)
	start := time.Now()
	if *fast {
		for i := uint64(0); i < *ticks; i++ {
			s.Step()
		}
	} else {
		t := time.NewTicker(time.Second / sim.TickRate)
		defer t.Stop()
		for i := uint64(0); i < *ticks; i++ {
			<-t.C
			s.Step()
		}
	}
	elapsed := time.Since(start)

	if recorded != nil {
		if err := sim.SaveInputLog(*recordPath, recorded); err != nil {
			logger.Printf("[Runner] record: %v", err)
		} else {
			logger.Printf("[Runner] recorded %d ticks to %s", recorded.Len(), *recordPath)
		}
	}

	v := s.Vehicle(player)
	fmt.Printf("ticks:     %d (%.2fs wall)\n", s.Tick(), elapsed.Seconds())
	fmt.Printf("distance:  %.1f m\n", v.Distance)
	fmt.Printf("speed:     %.1f m/s\n", v.ForwardSpeed)
	fmt.Printf("damage:    %.1f (front %.1f rear %.1f left %.1f right %.1f)\n",
		v.Damage.Total, v.Damage.Front, v.Damage.Rear, v.Damage.Left, v.Damage.Right)
	if v.Crash.Crashed {
		fmt.Printf("crashed:   %s at tick %d\n", v.Crash.Reason, v.Crash.Tick)
	} else {
		fmt.Printf("crashed:   no\n")
	}
}

// demoController is a deterministic synthetic driver: full throttle with a
// slow steering sweep and the occasional handbrake flick, enough to exercise
// lane changes and drift without any recorded input.
func demoController(seed uint32) sim.Controller {
	r := sim.NewRand(uint64(seed) ^ 0xD21FE5)
	phase := r.RangeF(0, 2*math.Pi)
	return sim.ControlFunc(func(tick uint64) sim.ControlInput {
		t := float64(tick) * sim.TickSeconds
		return sim.ControlInput{
			Steer:     0.5 * math.Sin(0.2*t+phase),
			Throttle:  1,
			Handbrake: math.Mod(t, 30) > 28,
		}
	})
}
