package actuator

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Model identifies a servo family. It decides the position range and the
// extra registers a motor exposes.
type Model string

// Supported servo families.
const (
	ModelAX Model = "AX"
	ModelRX Model = "RX"
	ModelMX Model = "MX"
)

// MaxPosition returns the largest reachable angle, in degrees.
func (m Model) MaxPosition() float64 {
	switch m {
	case ModelAX, ModelRX:
		return 150
	case ModelMX:
		return 180
	default:
		panic(fmt.Sprintf("unknown motor model %q", string(m)))
	}
}

// Valid tells if the model is one of the supported families.
func (m Model) Valid() bool {
	switch m {
	case ModelAX, ModelRX, ModelMX:
		return true
	}

	return false
}

// minMovingSpeed is roughly the smallest speed the servo does not round to
// zero, and zero means full speed on the device.
const minMovingSpeed = 0.7

var readOnlyRegisters = map[string]bool{
	PresentPosition:    true,
	PresentSpeed:       true,
	PresentLoad:        true,
	PresentTemperature: true,
	PresentVoltage:     true,
	AngleLimit:         true,
}

// Motor is the software image of a servo. The arbitration loop writes goal
// registers into it while a synchronization loop copies present registers
// from the device, so every access is guarded.
type Motor struct {
	lock sync.RWMutex

	id     int
	name   string
	model  Model
	direct bool
	offset float64

	values map[string]float64
}

// MotorSnapshot is a copy of the state of a motor at one instant. Registers
// hold raw values.
type MotorSnapshot struct {
	ID        int
	Name      string
	Model     Model
	Direct    bool
	Offset    float64
	Registers map[string]float64
}

// MotorBuilder can build motors.
type MotorBuilder struct {
	model  Model
	direct bool
	offset float64
}

// MakeMotorBuilder returns a builder with an MX model, direct orientation and
// no offset.
func MakeMotorBuilder() MotorBuilder {
	return MotorBuilder{
		model:  ModelMX,
		direct: true,
	}
}

// WithModel sets the servo family.
func (b MotorBuilder) WithModel(m Model) MotorBuilder {
	b.model = m
	return b
}

// WithDirect sets whether the motor turns in the direct orientation.
func (b MotorBuilder) WithDirect(direct bool) MotorBuilder {
	b.direct = direct
	return b
}

// WithOffset sets the zero offset, in degrees.
func (b MotorBuilder) WithOffset(offset float64) MotorBuilder {
	b.offset = offset
	return b
}

// Build creates a motor. The name defaults to motor_<id>.
func (b MotorBuilder) Build(id int, name string) *Motor {
	if !b.model.Valid() {
		panic(fmt.Sprintf("unknown motor model %q", string(b.model)))
	}

	if name == "" {
		name = fmt.Sprintf("motor_%d", id)
	}

	m := &Motor{
		id:     id,
		name:   name,
		model:  b.model,
		direct: b.direct,
		offset: b.offset,
		values: make(map[string]float64),
	}
	m.values[Compliant] = 1

	return m
}

// Name returns the name of the motor.
func (m *Motor) Name() string {
	return m.name
}

// ID returns the bus id of the motor.
func (m *Motor) ID() int {
	return m.id
}

// Model returns the servo family.
func (m *Motor) Model() Model {
	return m.model
}

// Direct returns the orientation of the motor.
func (m *Motor) Direct() bool {
	return m.direct
}

// Offset returns the zero offset in degrees.
func (m *Motor) Offset() float64 {
	return m.offset
}

// MaxPosition returns the largest reachable angle of the motor.
func (m *Motor) MaxPosition() float64 {
	return m.model.MaxPosition()
}

func (m *Motor) String() string {
	pos, _ := m.Get(PresentPosition)
	return fmt.Sprintf("<Motor name=%s id=%d pos=%.2f>", m.name, m.id, pos)
}

// Properties lists the writable properties of the motor, sorted by name.
func (m *Motor) Properties() []string {
	props := []string{
		GoalPosition, GoalSpeed, MovingSpeed, TorqueLimit, Compliant,
	}

	if m.hasCompliance() {
		props = append(props, ComplianceMargin, ComplianceSlope)
	}

	sort.Strings(props)

	return props
}

func (m *Motor) hasCompliance() bool {
	return m.model == ModelAX || m.model == ModelRX
}

func (m *Motor) knows(name string) bool {
	switch name {
	case GoalPosition, GoalSpeed, MovingSpeed, TorqueLimit, Compliant:
		return true
	case ComplianceMargin, ComplianceSlope:
		return m.hasCompliance()
	}

	return readOnlyRegisters[name]
}

// SetProperty writes a property in user units.
func (m *Motor) SetProperty(name string, value float64) error {
	if !m.knows(name) {
		return fmt.Errorf("%w: %s on motor %s", ErrUnknownProperty, name, m.name)
	}

	if readOnlyRegisters[name] {
		return fmt.Errorf("%w: %s on motor %s", ErrReadOnly, name, m.name)
	}

	if math.IsNaN(value) {
		return fmt.Errorf("motor %s: NaN written to %s", m.name, name)
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	switch name {
	case GoalPosition:
		m.setGoalPosition(value)
	case GoalSpeed:
		m.setGoalSpeed(value)
	case Compliant:
		m.setCompliant(value != 0)
	default:
		m.values[name] = value
	}

	return nil
}

// Get reads a property in user units.
func (m *Motor) Get(name string) (float64, error) {
	if !m.knows(name) {
		return 0, fmt.Errorf("%w: %s on motor %s", ErrUnknownProperty, name, m.name)
	}

	m.lock.RLock()
	defer m.lock.RUnlock()

	switch name {
	case GoalPosition:
		return m.goalPosition(), nil
	case PresentPosition:
		return m.fromRaw(m.values[PresentPosition]), nil
	case GoalSpeed:
		return sign(m.goalPosition()) * m.values[MovingSpeed], nil
	case PresentSpeed, PresentLoad:
		return m.orient(m.values[name]), nil
	default:
		return m.values[name], nil
	}
}

// SetPresent stores a raw register value read from the device.
func (m *Motor) SetPresent(name string, raw float64) error {
	if !readOnlyRegisters[name] {
		return fmt.Errorf("%w: %s is not a present register", ErrUnknownProperty, name)
	}

	m.lock.Lock()
	m.values[name] = raw
	m.lock.Unlock()

	return nil
}

// Snapshot copies the motor registers. It is safe to call while the motor
// is being written.
func (m *Motor) Snapshot() MotorSnapshot {
	m.lock.RLock()
	defer m.lock.RUnlock()

	registers := make(map[string]float64, len(m.values))
	for k, v := range m.values {
		registers[k] = v
	}

	return MotorSnapshot{
		ID:        m.id,
		Name:      m.name,
		Model:     m.model,
		Direct:    m.direct,
		Offset:    m.offset,
		Registers: registers,
	}
}

// Raw returns the register value as it would be sent to the device.
func (m *Motor) Raw(name string) float64 {
	m.lock.RLock()
	defer m.lock.RUnlock()

	return m.values[name]
}

func (m *Motor) orient(v float64) float64 {
	if m.direct {
		return v
	}

	return -v
}

func (m *Motor) fromRaw(raw float64) float64 {
	return m.orient(raw) - m.offset
}

func (m *Motor) goalPosition() float64 {
	return m.fromRaw(m.values[GoalPosition])
}

func (m *Motor) setGoalPosition(v float64) {
	m.values[GoalPosition] = m.orient(v + m.offset)
}

func (m *Motor) setGoalSpeed(v float64) {
	if math.Abs(v) < epsilon {
		m.setGoalPosition(m.fromRaw(m.values[PresentPosition]))
		return
	}

	if math.Abs(v) < minMovingSpeed {
		v = sign(v) * minMovingSpeed
	}

	m.setGoalPosition(sign(v) * m.model.MaxPosition())
	m.values[MovingSpeed] = math.Abs(v)
}

func (m *Motor) setCompliant(compliant bool) {
	wasCompliant := m.values[Compliant] != 0
	if !compliant && wasCompliant {
		m.setGoalPosition(m.fromRaw(m.values[PresentPosition]))
	}

	if compliant {
		m.values[Compliant] = 1
	} else {
		m.values[Compliant] = 0
	}
}

const epsilon = 2.220446049250313e-16

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}

	return 0
}
