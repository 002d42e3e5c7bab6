package telemetry

import "nightdrive/internal/sim"

// Frame is the wire envelope for one broadcast message.
type Frame struct {
	Type string       `json:"type"`
	Data sim.Snapshot `json:"data"`
}

func snapshotFrame(snap sim.Snapshot) Frame {
	return Frame{Type: "snapshot", Data: snap}
}
