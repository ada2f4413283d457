package actuator

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Motor", func() {
	var m *Motor

	BeforeEach(func() {
		m = MakeMotorBuilder().WithModel(ModelMX).Build(3, "")
	})

	It("should default the name from the id", func() {
		Expect(m.Name()).To(Equal("motor_3"))
		Expect(m.ID()).To(Equal(3))
	})

	It("should start compliant", func() {
		Expect(m.Get(Compliant)).To(Equal(1.0))
	})

	It("should write and read goal position", func() {
		Expect(m.SetProperty(GoalPosition, 42)).To(Succeed())
		Expect(m.Get(GoalPosition)).To(Equal(42.0))
		Expect(m.Raw(GoalPosition)).To(Equal(42.0))
	})

	It("should apply orientation and offset to positions", func() {
		m = MakeMotorBuilder().
			WithDirect(false).
			WithOffset(10).
			Build(1, "elbow")

		Expect(m.SetProperty(GoalPosition, 20)).To(Succeed())

		Expect(m.Raw(GoalPosition)).To(Equal(-30.0))
		Expect(m.Get(GoalPosition)).To(Equal(20.0))
	})

	It("should reject writes to read-only registers", func() {
		err := m.SetProperty(PresentPosition, 1)
		Expect(err).To(MatchError(ErrReadOnly))
	})

	It("should reject unknown properties", func() {
		err := m.SetProperty("flux_capacitor", 1)
		Expect(err).To(MatchError(ErrUnknownProperty))

		_, err = m.Get(ComplianceMargin)
		Expect(err).To(MatchError(ErrUnknownProperty))
	})

	It("should expose compliance registers on AX motors", func() {
		m = MakeMotorBuilder().WithModel(ModelAX).Build(1, "head")

		Expect(m.Properties()).To(ContainElement(ComplianceSlope))
		Expect(m.SetProperty(ComplianceMargin, 2)).To(Succeed())
		Expect(m.Get(ComplianceMargin)).To(Equal(2.0))
	})

	Context("goal speed", func() {
		It("should drive toward the limit at the requested speed", func() {
			Expect(m.SetProperty(GoalSpeed, -50)).To(Succeed())

			Expect(m.Get(GoalPosition)).To(Equal(-180.0))
			Expect(m.Get(MovingSpeed)).To(Equal(50.0))
			Expect(m.Get(GoalSpeed)).To(Equal(-50.0))
		})

		It("should clamp tiny speeds to the minimum", func() {
			Expect(m.SetProperty(GoalSpeed, 0.1)).To(Succeed())

			Expect(m.Get(MovingSpeed)).To(Equal(minMovingSpeed))
		})

		It("should hold the present position on zero speed", func() {
			Expect(m.SetPresent(PresentPosition, 12)).To(Succeed())

			Expect(m.SetProperty(GoalSpeed, 0)).To(Succeed())

			Expect(m.Get(GoalPosition)).To(Equal(12.0))
		})
	})

	It("should copy present position when becoming stiff", func() {
		Expect(m.SetPresent(PresentPosition, 33)).To(Succeed())

		Expect(m.SetProperty(Compliant, 0)).To(Succeed())

		Expect(m.Get(GoalPosition)).To(Equal(33.0))
		Expect(m.Get(Compliant)).To(Equal(0.0))
	})

	It("should take a detached snapshot", func() {
		Expect(m.SetProperty(GoalPosition, 42)).To(Succeed())

		snap := m.Snapshot()
		Expect(snap.Name).To(Equal("motor_3"))
		Expect(snap.Model).To(Equal(ModelMX))
		Expect(snap.Registers).To(HaveKeyWithValue(GoalPosition, 42.0))

		snap.Registers[GoalPosition] = 7
		Expect(m.Get(GoalPosition)).To(Equal(42.0))
	})

	It("should snapshot while being written", func() {
		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 1000; i++ {
				_ = m.SetProperty(GoalPosition, float64(i%100))
			}
		}()

		for i := 0; i < 1000; i++ {
			Expect(m.Snapshot().Registers).To(HaveKey(Compliant))
		}

		<-done
	})

	It("should not accept present values on goal registers", func() {
		Expect(m.SetPresent(GoalPosition, 1)).To(MatchError(ErrUnknownProperty))
	})
})
