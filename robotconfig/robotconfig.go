// Package robotconfig reads the description of a robot: its motors, motor
// groups, and how its manager arbitrates.
//
// A description looks like:
//
//	name: poppy
//	freq: 50
//	reduction: mean
//	motors:
//	  - {id: 11, name: head_z, model: AX-12, orientation: direct, offset: 0}
//	  - {id: 12, name: head_y, model: MX-28, orientation: indirect, offset: 20}
//	groups:
//	  head: [head_z, head_y]
package robotconfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/sarchlab/motorarbiter/actuator"
	"github.com/sarchlab/motorarbiter/primitive"
	"gopkg.in/yaml.v3"
)

// ErrInvalidRobot is wrapped by every validation error.
var ErrInvalidRobot = errors.New("invalid robot description")

// Orientations accepted in a motor description.
const (
	OrientationDirect   = "direct"
	OrientationIndirect = "indirect"
)

// Motor describes one servo.
type Motor struct {
	ID          int     `yaml:"id"`
	Name        string  `yaml:"name"`
	Model       string  `yaml:"model"`
	Orientation string  `yaml:"orientation"`
	Offset      float64 `yaml:"offset"`
}

// Robot is a full robot description.
type Robot struct {
	Name      string              `yaml:"name"`
	Freq      float64             `yaml:"freq"`
	Reduction string              `yaml:"reduction"`
	Motors    []Motor             `yaml:"motors"`
	Groups    map[string][]string `yaml:"groups"`
}

// Load reads and validates a description file.
func Load(path string) (*Robot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read robot description %s: %w",
			path, err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return r, nil
}

// Parse decodes and validates a description. Missing name, frequency and
// reduction get defaults.
func Parse(data []byte) (*Robot, error) {
	r := &Robot{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRobot, err)
	}

	r.applyDefaults()

	if err := r.Validate(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Robot) applyDefaults() {
	if r.Name == "" {
		r.Name = "robot"
	}

	if r.Freq == 0 {
		r.Freq = float64(primitive.DefaultFreq)
	}

	if r.Reduction == "" {
		r.Reduction = "mean"
	}

	for i := range r.Motors {
		if r.Motors[i].Orientation == "" {
			r.Motors[i].Orientation = OrientationDirect
		}
	}
}

// Validate checks that the description can be turned into motors and a
// manager.
func (r *Robot) Validate() error {
	if r.Freq <= 0 {
		return fmt.Errorf("%w: freq must be positive, got %g",
			ErrInvalidRobot, r.Freq)
	}

	if _, err := primitive.ReductionByName(r.Reduction); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRobot, err)
	}

	if len(r.Motors) == 0 {
		return fmt.Errorf("%w: no motor", ErrInvalidRobot)
	}

	if err := r.validateMotors(); err != nil {
		return err
	}

	return r.validateGroups()
}

func (r *Robot) validateMotors() error {
	ids := make(map[int]bool)
	names := make(map[string]bool)

	for _, m := range r.Motors {
		if ids[m.ID] {
			return fmt.Errorf("%w: duplicated motor id %d", ErrInvalidRobot, m.ID)
		}
		ids[m.ID] = true

		name := m.name()
		if names[name] {
			return fmt.Errorf("%w: duplicated motor name %q",
				ErrInvalidRobot, name)
		}
		names[name] = true

		if _, err := m.model(); err != nil {
			return err
		}

		if m.Orientation != OrientationDirect &&
			m.Orientation != OrientationIndirect {
			return fmt.Errorf("%w: motor %s has orientation %q",
				ErrInvalidRobot, name, m.Orientation)
		}
	}

	return nil
}

func (r *Robot) validateGroups() error {
	names := make(map[string]bool)
	for _, m := range r.Motors {
		names[m.name()] = true
	}

	for group, members := range r.Groups {
		if names[group] {
			return fmt.Errorf("%w: group %q shadows a motor",
				ErrInvalidRobot, group)
		}

		for _, member := range members {
			if !names[member] {
				return fmt.Errorf("%w: group %q has unknown motor %q",
					ErrInvalidRobot, group, member)
			}
		}
	}

	return nil
}

func (m Motor) name() string {
	if m.Name == "" {
		return fmt.Sprintf("motor_%d", m.ID)
	}

	return m.Name
}

// model maps a servo reference such as "MX-28" or "AX-12" to its family.
func (m Motor) model() (actuator.Model, error) {
	ref := strings.ToUpper(m.Model)

	for _, model := range []actuator.Model{
		actuator.ModelMX, actuator.ModelAX, actuator.ModelRX,
	} {
		if strings.HasPrefix(ref, string(model)) {
			return model, nil
		}
	}

	return "", fmt.Errorf("%w: motor %s has unknown model %q",
		ErrInvalidRobot, m.name(), m.Model)
}

// BuildMotors creates the motors in the order they are described.
func (r *Robot) BuildMotors() []*actuator.Motor {
	motors := make([]*actuator.Motor, 0, len(r.Motors))

	for _, m := range r.Motors {
		model, err := m.model()
		if err != nil {
			panic(err)
		}

		motors = append(motors, actuator.MakeMotorBuilder().
			WithModel(model).
			WithDirect(m.Orientation == OrientationDirect).
			WithOffset(m.Offset).
			Build(m.ID, m.name()))
	}

	return motors
}

// ReductionFunc returns the configured reduction.
func (r *Robot) ReductionFunc() primitive.Reduction {
	f, err := primitive.ReductionByName(r.Reduction)
	if err != nil {
		panic(err)
	}

	return f
}

// Group returns the motor names of a group. A motor name is accepted as a
// group of one, and an empty name means every motor.
func (r *Robot) Group(name string) ([]string, error) {
	if name == "" {
		all := make([]string, 0, len(r.Motors))
		for _, m := range r.Motors {
			all = append(all, m.name())
		}

		return all, nil
	}

	if members, ok := r.Groups[name]; ok {
		return append([]string(nil), members...), nil
	}

	for _, m := range r.Motors {
		if m.name() == name {
			return []string{name}, nil
		}
	}

	return nil, fmt.Errorf("no motor or group named %q", name)
}

// ManagerBuilder returns a primitive.Builder configured for this robot.
func (r *Robot) ManagerBuilder(motors []*actuator.Motor) primitive.Builder {
	actuators := make([]actuator.Actuator, 0, len(motors))
	for _, m := range motors {
		actuators = append(actuators, m)
	}

	return primitive.MakeBuilder().
		WithActuators(actuators...).
		WithFreq(primitive.Freq(r.Freq)).
		WithReduction(r.ReductionFunc())
}
