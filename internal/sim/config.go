package sim

import "math"

// Fixed simulation rate. All integration uses TickSeconds; wall-clock time
// never enters the core.
const (
	TickRate    = 60
	TickSeconds = 1.0 / float64(TickRate)
)

// Track generation (distances in meters, angles in radians).
const (
	SegMinLength = 40.0
	SegMaxLength = 120.0

	MaxYawDeflect   = 0.35 // scaled by difficulty
	MaxPitchDeflect = 0.06

	TangentScaleMin = 0.4
	TangentScaleMax = 0.6

	MinTurnRadius     = 60.0
	MaxCurvature      = 1.0 / MinTurnRadius
	CurvatureSamples  = 16
	MaxSegmentRetries = 4

	GenerateAhead = 600.0
	CleanupBehind = 300.0
)

// Lanes.
const (
	LaneWidth        = 3.6
	MinLaneCount     = 2
	MaxLaneCount     = 4
	EdgeZoneFraction = 0.85
	EdgeStiffness    = 6.0
)

// Forks and overpasses.
const (
	ForkSeparation     = 18.0 // full lateral split at branch end
	ForkCommitFraction = 0.65 // point of no return along the fork segment
	ForkChooseOffset   = 2.5  // lateral offset that selects the diverging branch
	ForkMagnetismDrop  = 0.3  // magnetism fades to 70% on approach
	MinForkDistance    = 1500.0
	OverpassAmplitude  = 6.0
)

// Forward speed envelope (m/s).
const (
	MinForwardSpeed = 8.0
	MaxForwardSpeed = 80.0
	RefSpeed        = 40.0

	BaseAccel  = 12.0
	BrakeDecel = 18.0
	DragCoeff  = 0.12

	// Overdrive lifts the speed ceiling; acceleration decays asymptotically
	// instead, so top speed is an equilibrium against drag, not a clamp.
	OverdriveAccel = 40.0
)

// Yaw / drift model.
const (
	SteerGain     = 2.4
	DriftGain     = 0.9
	YawDamping    = 3.0
	MaxYawRate    = 3.5
	RecoveryGain  = 4.0
	DriftExitYaw  = 0.12
	DriftExitRate = 0.25
)

// Slip / lateral kinematics.
const (
	SlipGain        = 1.6
	MaxLateralSpeed = 15.0
	LateralDecay    = 2.0 // grip pulls lateral speed to zero when not drifting
)

// Lane magnetism. Omega is the natural frequency of the critically damped
// centering spring.
const (
	MagnetismOmega     = 8.0
	AutopilotBoost     = 1.5
	HandbrakeMagnetism = 0.25
	SpeedFactorMin     = 0.75
	SpeedFactorMax     = 1.25
)

// Lane change.
const (
	LaneChangeSteer   = 0.35
	CounterSteerAbort = 0.7
	LaneChangeBase    = 0.6
	LaneChangeMinTime = 0.45
	LaneChangeMaxTime = 1.0
)

// Impulse resolution.
const (
	ImpulseScale = 1.0
	VirtualMass  = 12.0
	YawKickScale = 0.08
	YawKickEps   = 0.001
)

// Damage and component health.
const (
	DamageScale      = 0.02
	CrashDamageLimit = 100.0
	DamageToHealth   = 0.02 // converts damage energy to [0,1] health loss

	TransferFrontSteering    = 0.8
	TransferRearTransmission = 0.6
	TransferSideSuspension   = 0.5
	TransferTotalEngine      = 0.3
	TransferAnyTires         = 0.4

	ComponentFailThreshold = 0.1
	ComponentCascadeCount  = 3
)

// Crash decision.
const (
	LethalSeverity    = 0.8
	LethalImpactSpeed = 25.0
	CompoundDamage    = 60.0
	CompoundYawLimit  = 2.6
	// Tolerance for "pinned at the speed floor" in the compound-failure test.
	// Tunable; the floor comparison is never exact after drag and clamping.
	SpeedFloorTolerance = 0.5
)

// Handling degradation caps (fraction of the base value lost at full damage
// or on component failure).
const (
	FrontSteerLoss    = 0.40
	SideMagnetismLoss = 0.50
	RearSlipGainBoost = 0.60

	TireFailSlip             = 1.8
	SuspensionFailSlip       = 1.5
	EngineFailAccel          = 0.5
	TransmissionFailRecovery = 0.4
)

// Cosmetic deformation springs.
const (
	DeformSpring  = 8.0
	DeformDamping = 0.7
)

// MaxYawDeflectAt returns the yaw deflection bound for a segment at the given
// difficulty.
func MaxYawDeflectAt(difficulty float64) float64 {
	return MaxYawDeflect * clampF(difficulty, 0, 1)
}

var deformDampingCoeff = 2 * DeformDamping * math.Sqrt(DeformSpring)
