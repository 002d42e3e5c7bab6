package sim

// DeformZone is one critically damped visual deformation spring. Purely an
// output for mesh systems; nothing here feeds back into the physics.
type DeformZone struct {
	Offset   float64
	Velocity float64
}

func (z *DeformZone) update(target, dt float64) {
	accel := DeformSpring*(target-z.Offset) - deformDampingCoeff*z.Velocity
	z.Velocity += accel * dt
	z.Offset += z.Velocity * dt
}

// DeformState carries the four zone springs for one vehicle.
type DeformState struct {
	Front, Rear, Left, Right DeformZone
}

// Update relaxes each zone toward a deformation proportional to its damage.
func (d *DeformState) Update(dmg DamageState, dt float64) {
	d.Front.update(clampF(dmg.Front/CrashDamageLimit, 0, 1), dt)
	d.Rear.update(clampF(dmg.Rear/CrashDamageLimit, 0, 1), dt)
	d.Left.update(clampF(dmg.Left/CrashDamageLimit, 0, 1), dt)
	d.Right.update(clampF(dmg.Right/CrashDamageLimit, 0, 1), dt)
}

// Reset snaps all zones back to rest.
func (d *DeformState) Reset() {
	*d = DeformState{}
}
