package ahrs

import "math"

const degToRad = math.Pi / 180.0

// quaternion is an orientation estimate in scalar-first form.
type quaternion struct {
	w, x, y, z float64
}

// Mahony is a quaternion Mahony passive-complementary-filter AHRS,
// using proportional-integral feedback on the cross-product error between
// the measured and estimated gravity (and, when available, magnetic field)
// directions.
type Mahony struct {
	q quaternion

	kp, ki float64

	integralFBx, integralFBy, integralFBz float64

	initialized bool
	yawDeg      float64
}

// maxGyroCorrection clamps each of the two feedback terms (the integral
// accumulator and the proportional term) separately before they are added
// to the raw gyro rate, so a bad accel/mag reading cannot inject a large
// spurious rotation in one step.
const maxGyroCorrection = 0.1 // rad/s

// NewMahony constructs a Mahony filter with proportional gain kp. gain (as
// used by callers) maps to kp; the integral gain ki is fixed at a small
// value matching common Mahony tunings.
func NewMahony(kp float64) *Mahony {
	if kp <= 0 {
		kp = 0.5
	}
	return &Mahony{
		q:  quaternion{w: 1},
		kp: kp,
		ki: 0.01,
	}
}

func (m *Mahony) Initialized() bool { return m.initialized }

func (m *Mahony) YawDeg() float64 { return m.yawDeg }

func (m *Mahony) Update(gyroDegPS, accelMPS2, magUT [3]float64, hasMag bool, dtS float64) {
	if dtS <= 0 {
		dtS = 1e-3
	}

	gx := gyroDegPS[0] * degToRad
	gy := gyroDegPS[1] * degToRad
	gz := gyroDegPS[2] * degToRad
	ax, ay, az := accelMPS2[0], accelMPS2[1], accelMPS2[2]

	if hasMag && !(magUT[0] == 0 && magUT[1] == 0 && magUT[2] == 0) {
		m.updateWithMag(gx, gy, gz, ax, ay, az, magUT[0], magUT[1], magUT[2], dtS)
	} else {
		m.updateIMU(gx, gy, gz, ax, ay, az, dtS)
	}

	m.initialized = true
	m.yawDeg = normalizeDeg(m.computeYawDeg())
}

func (m *Mahony) updateIMU(gx, gy, gz, ax, ay, az, dt float64) {
	if norm := math.Sqrt(ax*ax + ay*ay + az*az); norm > 0 {
		recip := 1.0 / norm
		ax, ay, az = ax*recip, ay*recip, az*recip

		q := m.q
		vx := 2 * (q.x*q.z - q.w*q.y)
		vy := 2 * (q.w*q.x + q.y*q.z)
		vz := q.w*q.w - q.x*q.x - q.y*q.y + q.z*q.z

		ex := ay*vz - az*vy
		ey := az*vx - ax*vz
		ez := ax*vy - ay*vx

		gx, gy, gz = m.applyFeedback(gx, gy, gz, ex, ey, ez, dt)
	}
	m.integrate(gx, gy, gz, dt)
}

func (m *Mahony) updateWithMag(gx, gy, gz, ax, ay, az, mx, my, mz, dt float64) {
	anorm := math.Sqrt(ax*ax + ay*ay + az*az)
	mnorm := math.Sqrt(mx*mx + my*my + mz*mz)
	if anorm <= 0 || mnorm <= 0 {
		m.updateIMU(gx, gy, gz, ax, ay, az, dt)
		return
	}
	ar := 1.0 / anorm
	ax, ay, az = ax*ar, ay*ar, az*ar
	mr := 1.0 / mnorm
	mx, my, mz = mx*mr, my*mr, mz*mr

	q := m.q
	hx := 2 * (mx*(0.5-q.y*q.y-q.z*q.z) + my*(q.x*q.y-q.w*q.z) + mz*(q.x*q.z+q.w*q.y))
	hy := 2 * (mx*(q.x*q.y+q.w*q.z) + my*(0.5-q.x*q.x-q.z*q.z) + mz*(q.y*q.z-q.w*q.x))
	bz := 2 * (mx*(q.x*q.z-q.w*q.y) + my*(q.y*q.z+q.w*q.x) + mz*(0.5-q.x*q.x-q.y*q.y))
	bx := math.Sqrt(hx*hx + hy*hy)

	vx := 2 * (q.x*q.z - q.w*q.y)
	vy := 2 * (q.w*q.x + q.y*q.z)
	vz := q.w*q.w - q.x*q.x - q.y*q.y + q.z*q.z

	wx := 2 * (bx*(0.5-q.y*q.y-q.z*q.z) + bz*(q.x*q.z-q.w*q.y))
	wy := 2 * (bx*(q.x*q.y-q.w*q.z) + bz*(q.w*q.x+q.y*q.z))
	wz := 2 * (bx*(q.w*q.y+q.x*q.z) + bz*(0.5-q.x*q.x-q.y*q.y))

	ex := (ay*vz - az*vy) + (my*wz - mz*wy)
	ey := (az*vx - ax*vz) + (mz*wx - mx*wz)
	ez := (ax*vy - ay*vx) + (mx*wy - my*wx)

	gx, gy, gz = m.applyFeedback(gx, gy, gz, ex, ey, ez, dt)
	m.integrate(gx, gy, gz, dt)
}

func (m *Mahony) applyFeedback(gx, gy, gz, ex, ey, ez, dt float64) (float64, float64, float64) {
	if m.ki > 0 {
		m.integralFBx += m.ki * ex * dt
		m.integralFBy += m.ki * ey * dt
		m.integralFBz += m.ki * ez * dt
		m.integralFBx = clamp(m.integralFBx, maxGyroCorrection)
		m.integralFBy = clamp(m.integralFBy, maxGyroCorrection)
		m.integralFBz = clamp(m.integralFBz, maxGyroCorrection)
		gx += m.integralFBx
		gy += m.integralFBy
		gz += m.integralFBz
	}
	gx += clamp(m.kp*ex, maxGyroCorrection)
	gy += clamp(m.kp*ey, maxGyroCorrection)
	gz += clamp(m.kp*ez, maxGyroCorrection)
	return gx, gy, gz
}

func clamp(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

func (m *Mahony) integrate(gx, gy, gz, dt float64) {
	q := m.q
	half := 0.5 * dt
	qw := q.w + (-q.x*gx-q.y*gy-q.z*gz)*half
	qx := q.x + (q.w*gx+q.y*gz-q.z*gy)*half
	qy := q.y + (q.w*gy-q.x*gz+q.z*gx)*half
	qz := q.z + (q.w*gz+q.x*gy-q.y*gx)*half

	norm := math.Sqrt(qw*qw + qx*qx + qy*qy + qz*qz)
	if norm == 0 {
		return
	}
	recip := 1.0 / norm
	m.q = quaternion{w: qw * recip, x: qx * recip, y: qy * recip, z: qz * recip}
}

func (m *Mahony) computeYawDeg() float64 {
	q := m.q
	siny := 2 * (q.w*q.z + q.x*q.y)
	cosy := 1 - 2*(q.y*q.y+q.z*q.z)
	return math.Atan2(siny, cosy) / degToRad
}
