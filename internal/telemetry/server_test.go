package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"nightdrive/internal/sim"
)

func throttleOnly(uint64) sim.ControlInput {
	return sim.ControlInput{Throttle: 1}
}

func dialTest(t *testing.T, srv *Server) (*httptest.Server, *websocket.Conn) {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		ts.Close()
		t.Fatal(err)
	}
	return ts, ws
}

func TestStreamDeliversSnapshots(t *testing.T) {
	core := sim.New(sim.Config{Seed: 1})
	core.AddVehicle(1, sim.ControlFunc(throttleOnly))
	srv := NewServer(nil)
	core.SetReplicationSink(srv)
	for i := 0; i < 30; i++ {
		core.Step()
	}

	ts, ws := dialTest(t, srv)
	defer ts.Close()
	defer ws.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				srv.snapMu.RLock()
				snap := srv.latest
				srv.snapMu.RUnlock()
				srv.broadcast(snapshotFrame(snap))
			}
		}
	}()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame Frame
	if err := ws.ReadJSON(&frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != "snapshot" {
		t.Errorf("frame type %q", frame.Type)
	}
	if frame.Data.Tick != 30 || len(frame.Data.Vehicles) != 1 {
		t.Errorf("snapshot tick %d vehicles %d", frame.Data.Tick, len(frame.Data.Vehicles))
	}
	if frame.Data.Vehicles[0].Distance <= 0 {
		t.Error("vehicle distance missing from stream")
	}
}

// The broadcast loop must be safe to run while the simulation keeps
// stepping: the sink hands it detached copies, never live state.
func TestStreamWhileStepping(t *testing.T) {
	core := sim.New(sim.Config{Seed: 3})
	core.AddVehicle(1, sim.ControlFunc(throttleOnly))
	srv := NewServer(nil)
	srv.interval = 2 * time.Millisecond
	core.SetReplicationSink(srv)
	core.Step()

	ts, ws := dialTest(t, srv)
	defer ts.Close()
	defer ws.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			core.Step()
		}
	}()

	stop := make(chan struct{})
	go func() {
		tk := time.NewTicker(srv.interval)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				srv.snapMu.RLock()
				snap := srv.latest
				srv.snapMu.RUnlock()
				srv.broadcast(snapshotFrame(snap))
			}
		}
	}()

	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	prev := uint64(0)
	for i := 0; i < 5; i++ {
		var frame Frame
		if err := ws.ReadJSON(&frame); err != nil {
			t.Fatal(err)
		}
		if frame.Data.Tick < prev {
			t.Fatalf("tick went backwards: %d -> %d", prev, frame.Data.Tick)
		}
		prev = frame.Data.Tick
	}
	<-done
	close(stop)
}

func TestDeadClientDropped(t *testing.T) {
	core := sim.New(sim.Config{Seed: 1})
	core.AddVehicle(1, sim.ControlFunc(throttleOnly))
	srv := NewServer(nil)
	core.SetReplicationSink(srv)
	core.Step()

	ts, ws := dialTest(t, srv)
	defer ts.Close()
	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.mu.Lock()
		n := len(srv.conns)
		srv.mu.Unlock()
		if n == 0 {
			return
		}
		srv.broadcast(snapshotFrame(srv.latest))
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("closed client never dropped")
}
