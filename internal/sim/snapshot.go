package sim

// Snapshot is the read-only per-tick view for external consumers: rendering,
// audio parameters, scoring, serialization. Building one copies everything;
// nothing in it aliases live simulation state.
type Snapshot struct {
	Tick     uint64            `json:"tick"`
	Seed     uint32            `json:"seed"`
	Vehicles []VehicleSnapshot `json:"vehicles"`
	Segments []SegmentSnapshot `json:"segments"`
}

type VehicleSnapshot struct {
	Index    int        `json:"index"`
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"` // w, x, y, z

	Distance float64 `json:"distance"`
	Lateral  float64 `json:"lateral"`
	Lane     int     `json:"lane"`

	ForwardSpeed float64 `json:"forwardSpeed"`
	LateralSpeed float64 `json:"lateralSpeed"`
	AngularSpeed float64 `json:"angularSpeed"`

	YawOffset float64 `json:"yawOffset"`
	YawRate   float64 `json:"yawRate"`
	SlipAngle float64 `json:"slipAngle"`
	Drifting  bool    `json:"drifting"`

	Damage DamageSnapshot `json:"damage"`
	Health HealthSnapshot `json:"health"`
	Deform DeformSnapshot `json:"deform"`

	Crashed     bool   `json:"crashed"`
	CrashReason string `json:"crashReason,omitempty"`
}

type DamageSnapshot struct {
	Front float64 `json:"front"`
	Rear  float64 `json:"rear"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
	Total float64 `json:"total"`
}

type HealthSnapshot struct {
	Suspension   float64 `json:"suspension"`
	Steering     float64 `json:"steering"`
	Tires        float64 `json:"tires"`
	Engine       float64 `json:"engine"`
	Transmission float64 `json:"transmission"`
}

type DeformSnapshot struct {
	Front float64 `json:"front"`
	Rear  float64 `json:"rear"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

type SegmentSnapshot struct {
	Index      int     `json:"index"`
	Kind       string  `json:"kind"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Difficulty float64 `json:"difficulty"`
	Lanes      int     `json:"lanes"`
}

// Snapshot captures the current simulation state.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:     s.tick,
		Seed:     s.seed,
		Vehicles: make([]VehicleSnapshot, len(s.vehicles)),
		Segments: make([]SegmentSnapshot, len(s.Track.Segments())),
	}
	for i, v := range s.vehicles {
		vs := VehicleSnapshot{
			Index:        i,
			Position:     [3]float64{v.Position.X(), v.Position.Y(), v.Position.Z()},
			Rotation:     [4]float64{v.Rotation.W, v.Rotation.V.X(), v.Rotation.V.Y(), v.Rotation.V.Z()},
			Distance:     v.Distance,
			Lateral:      v.Lateral,
			Lane:         v.Lane,
			ForwardSpeed: v.ForwardSpeed,
			LateralSpeed: v.LateralSpeed,
			AngularSpeed: v.AngularSpeed,
			YawOffset:    v.YawOffset,
			YawRate:      v.YawRate,
			SlipAngle:    v.SlipAngle,
			Drifting:     v.Drifting,
			Damage: DamageSnapshot{
				Front: v.Damage.Front,
				Rear:  v.Damage.Rear,
				Left:  v.Damage.Left,
				Right: v.Damage.Right,
				Total: v.Damage.Total,
			},
			Health: HealthSnapshot{
				Suspension:   v.Health.Suspension,
				Steering:     v.Health.Steering,
				Tires:        v.Health.Tires,
				Engine:       v.Health.Engine,
				Transmission: v.Health.Transmission,
			},
			Deform: DeformSnapshot{
				Front: s.deforms[i].Front.Offset,
				Rear:  s.deforms[i].Rear.Offset,
				Left:  s.deforms[i].Left.Offset,
				Right: s.deforms[i].Right.Offset,
			},
			Crashed: v.Crash.Crashed,
		}
		if v.Crash.Crashed {
			vs.CrashReason = v.Crash.Reason.String()
		}
		snap.Vehicles[i] = vs
	}
	for i, seg := range s.Track.Segments() {
		snap.Segments[i] = SegmentSnapshot{
			Index:      seg.Index,
			Kind:       seg.Kind.String(),
			Start:      seg.Start,
			End:        seg.End,
			Difficulty: seg.Difficulty,
			Lanes:      len(seg.Lanes),
		}
	}
	return snap
}
