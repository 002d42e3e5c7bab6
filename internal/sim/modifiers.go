package sim

// HandlingModifiers is the read-only damage→dynamics coupling, computed once
// per tick by the damage pipeline and handed to the integrator. The dynamics
// step never touches damage or health directly.
type HandlingModifiers struct {
	SteerGain    float64 // multiplier on steering torque gain
	Omega        float64 // multiplier on the magnetism natural frequency
	SlipGain     float64 // multiplier on drift slip gain
	Accel        float64 // multiplier on forward acceleration
	RecoveryRate float64 // multiplier on drift recovery torque
	Magnetism    float64 // m_damage factor on magnetism strength
}

func neutralModifiers() HandlingModifiers {
	return HandlingModifiers{
		SteerGain:    1,
		Omega:        1,
		SlipGain:     1,
		Accel:        1,
		RecoveryRate: 1,
		Magnetism:    1,
	}
}

// ComputeModifiers folds directional damage and component failures into
// handling penalties. All effects are multiplicative so they stack.
func ComputeModifiers(d DamageState, h ComponentHealth) HandlingModifiers {
	m := neutralModifiers()

	front := clampF(d.Front/CrashDamageLimit, 0, 1)
	rear := clampF(d.Rear/CrashDamageLimit, 0, 1)
	side := d.SideDamage()

	m.SteerGain = 1 - FrontSteerLoss*front
	m.Omega = 1 - SideMagnetismLoss*side
	m.SlipGain = 1 + RearSlipGainBoost*rear
	m.Magnetism = 1 - 0.5*side

	if h.Tires < ComponentFailThreshold {
		m.SlipGain *= TireFailSlip
	}
	if h.Suspension < ComponentFailThreshold {
		m.SlipGain *= SuspensionFailSlip
	}
	if h.Engine < ComponentFailThreshold {
		m.Accel *= EngineFailAccel // limp mode
	}
	if h.Transmission < ComponentFailThreshold {
		m.RecoveryRate *= TransmissionFailRecovery
	}
	return m
}
