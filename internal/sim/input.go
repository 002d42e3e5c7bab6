package sim

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// ControlInput is one tick of control for one vehicle. The recorded stream
// of these plus the world seed is the sole replay source.
type ControlInput struct {
	Steer     float64 // [-1,1]
	Throttle  float64 // [0,1]
	Brake     float64 // [0,1]
	Handbrake bool
}

// Clamped silently corrects out-of-range input at the boundary. Bad input is
// not an error.
func (c ControlInput) Clamped() ControlInput {
	c.Steer = clampF(c.Steer, -1, 1)
	c.Throttle = clampF(c.Throttle, 0, 1)
	c.Brake = clampF(c.Brake, 0, 1)
	return c
}

// Controller supplies per-tick input for one vehicle. Player replay logs,
// scripted traffic, and external feeds all implement it; the integrator math
// is identical behind it.
type Controller interface {
	Control(tick uint64) ControlInput
}

// ControlFunc adapts a function to the Controller interface.
type ControlFunc func(tick uint64) ControlInput

func (f ControlFunc) Control(tick uint64) ControlInput { return f(tick) }

// InputLog is an ordered per-tick input recording. Reading past the end
// returns coasting input (all zero), so a short log yields a well-defined
// run tail.
type InputLog struct {
	frames []ControlInput
}

func NewInputLog() *InputLog {
	return &InputLog{}
}

// Record appends the input for the next tick.
func (l *InputLog) Record(in ControlInput) {
	l.frames = append(l.frames, in.Clamped())
}

// Len returns the number of recorded ticks.
func (l *InputLog) Len() int { return len(l.frames) }

// Control implements Controller by replaying the recorded stream.
func (l *InputLog) Control(tick uint64) ControlInput {
	if tick >= uint64(len(l.frames)) {
		return ControlInput{}
	}
	return l.frames[tick]
}

// Write encodes the log as one line per tick.
func (l *InputLog) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, f := range l.frames {
		hb := 0
		if f.Handbrake {
			hb = 1
		}
		if _, err := fmt.Fprintf(bw, "%g %g %g %d\n", f.Steer, f.Throttle, f.Brake, hb); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadInputLog parses a log written by Write.
func ReadInputLog(r io.Reader) (*InputLog, error) {
	log := NewInputLog()
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		txt := sc.Text()
		if txt == "" {
			continue
		}
		var in ControlInput
		var hb int
		if _, err := fmt.Sscanf(txt, "%g %g %g %d", &in.Steer, &in.Throttle, &in.Brake, &hb); err != nil {
			return nil, fmt.Errorf("input log line %d: %w", line, err)
		}
		in.Handbrake = hb != 0
		log.Record(in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("input log: %w", err)
	}
	return log, nil
}

// LoadInputLog reads a recorded input file.
func LoadInputLog(path string) (*InputLog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("input log: %w", err)
	}
	defer f.Close()
	return ReadInputLog(f)
}

// SaveInputLog writes the log to a file.
func SaveInputLog(path string, l *InputLog) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("input log: %w", err)
	}
	if err := l.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
