package primitive

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/motorarbiter/actuator"
)

var _ = Describe("LoopPrimitive", func() {
	var (
		a *recordingActuator
		m *Manager
	)

	BeforeEach(func() {
		a = newRecordingActuator("m1")

		var err error
		m, err = MakeBuilder().
			WithActuators(a).
			WithFreq(500 * Hz).
			Build("Manager")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should register on start and deregister on stop", func() {
		p := NewLoopPrimitive(m, 100*Hz,
			func(_ time.Duration, buf *StagingBuffer) {
				buf.Stage("m1", actuator.GoalPosition, 5)
			})

		Expect(p.Start()).To(Succeed())
		Expect(p.Running()).To(BeTrue())
		Expect(m.Primitives()).To(ConsistOf(p))
		Expect(p.StagedWrites("m1")).To(HaveKeyWithValue(actuator.GoalPosition, 5.0))

		p.Stop()

		Expect(p.Running()).To(BeFalse())
		Expect(m.Primitives()).To(BeEmpty())
		Expect(p.Start()).To(MatchError(ErrStopped))
	})

	It("should let the update function query its own primitive", func() {
		var (
			p       *LoopPrimitive
			running bool
		)

		p = NewLoopPrimitive(m, 1*Hz,
			func(time.Duration, *StagingBuffer) {
				running = p.Running()
				_ = p.ElapsedTime()
			})

		done := make(chan error, 1)
		go func() { done <- p.Start() }()

		Eventually(done).Should(Receive(BeNil()))
		p.Stop()

		Expect(running).To(BeTrue())
	})

	It("should not start twice", func() {
		p := NewLoopPrimitive(m, 100*Hz, func(time.Duration, *StagingBuffer) {})
		Expect(p.Start()).To(Succeed())
		defer p.Stop()

		Expect(p.Start()).To(MatchError(ErrAlreadyRunning))
	})

	It("should keep updating at its own pace", func() {
		updates := make(chan time.Duration, 100)
		p := NewLoopPrimitive(m, 200*Hz,
			func(elapsed time.Duration, _ *StagingBuffer) {
				select {
				case updates <- elapsed:
				default:
				}
			})

		Expect(p.Start()).To(Succeed())
		Eventually(func() int { return len(updates) }).Should(BeNumerically(">=", 3))
		p.Stop()

		Expect(<-updates).To(Equal(time.Duration(0)))
		Expect(<-updates).To(BeNumerically(">", 0))
	})

	It("should have its orders combined by a running manager", func() {
		low := NewLoopPrimitive(m, 100*Hz, func(_ time.Duration, b *StagingBuffer) {
			b.Stage("m1", actuator.GoalPosition, 10)
		})
		high := NewLoopPrimitive(m, 100*Hz, func(_ time.Duration, b *StagingBuffer) {
			b.Stage("m1", actuator.GoalPosition, 20)
		})

		Expect(low.Start()).To(Succeed())
		Expect(high.Start()).To(Succeed())
		Expect(m.Start()).To(Succeed())

		Eventually(func() []float64 {
			return a.Writes(actuator.GoalPosition)
		}).Should(ContainElement(15.0))

		high.Stop()
		low.Stop()
		m.Stop()
	})
})

var _ = Describe("Sinus", func() {
	It("should compute positions", func() {
		s := SinusParams{Amp: 10, Freq: 0.5, Offset: 2, Phase: 90}

		Expect(s.Position(0)).To(BeNumerically("~", 12, 1e-9))
		Expect(s.Position(time.Second)).To(BeNumerically("~", -8, 1e-9))
	})

	It("should stage goal positions for every motor", func() {
		reg := &countingRegistrar{}
		p := NewSinus(reg, 1*Hz, []string{"m1", "m2"},
			SinusParams{Amp: 10, Freq: 1})

		Expect(p.Start()).To(Succeed())
		p.Stop()

		Expect(p.StagedWrites("m1")).To(HaveKeyWithValue(actuator.GoalPosition, 0.0))
		Expect(p.StagedWrites("m2")).To(HaveKey(actuator.GoalPosition))
		Expect(reg.registered).To(Equal(1))
		Expect(reg.deregistered).To(Equal(1))
	})

	It("should shift cosinus by a quarter period", func() {
		p := NewCosinus(&countingRegistrar{}, 1*Hz, []string{"m1"},
			SinusParams{Amp: 10, Freq: 1})

		Expect(p.Start()).To(Succeed())
		p.Stop()

		v := p.StagedWrites("m1")[actuator.GoalPosition]
		Expect(math.Abs(v - 10)).To(BeNumerically("<", 1e-9))
	})
})

type countingRegistrar struct {
	registered, deregistered int
}

func (r *countingRegistrar) Register(Source) {
	r.registered++
}

func (r *countingRegistrar) Deregister(Source) {
	r.deregistered++
}
