// Package actuator defines what the arbitration loop writes to and provides
// an in-memory model of a Dynamixel-style servo motor.
package actuator

import "errors"

// An Actuator is a named output that accepts property writes by name.
//
// SetProperty is called from the arbitration loop only and is expected to
// return quickly. Hardware latency belongs to whatever synchronizes the
// actuator with the real device.
type Actuator interface {
	Name() string
	SetProperty(name string, value float64) error
}

// Property names understood by Motor.
const (
	GoalPosition       = "goal_position"
	GoalSpeed          = "goal_speed"
	MovingSpeed        = "moving_speed"
	TorqueLimit        = "torque_limit"
	Compliant          = "compliant"
	ComplianceMargin   = "compliance_margin"
	ComplianceSlope    = "compliance_slope"
	PresentPosition    = "present_position"
	PresentSpeed       = "present_speed"
	PresentLoad        = "present_load"
	PresentTemperature = "present_temperature"
	PresentVoltage     = "present_voltage"
	AngleLimit         = "angle_limit"
)

var (
	// ErrUnknownProperty is returned when a property does not exist on the
	// actuator.
	ErrUnknownProperty = errors.New("unknown property")

	// ErrReadOnly is returned when writing a register that can only be read.
	ErrReadOnly = errors.New("property is read-only")
)
