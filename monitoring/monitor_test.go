package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/motorarbiter/actuator"
	"github.com/sarchlab/motorarbiter/primitive"
	"github.com/sarchlab/motorarbiter/tracing"
)

var _ = Describe("Monitor", func() {
	var (
		motor   *actuator.Motor
		manager *primitive.Manager
		tracer  *tracing.TickTimeTracer
		m       *Monitor
		server  *httptest.Server
	)

	get := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())

		return rsp.StatusCode, body
	}

	BeforeEach(func() {
		motor = actuator.MakeMotorBuilder().Build(1, "head_z")

		var err error
		manager, err = primitive.MakeBuilder().
			WithActuators(motor).
			Build("Manager")
		Expect(err).NotTo(HaveOccurred())

		tracer = tracing.NewTickTimeTracer()
		manager.AcceptHook(tracer)

		m = NewMonitor()
		m.RegisterManager(manager)
		m.RegisterTickTracer(tracer)

		server = httptest.NewServer(m.Handler())
	})

	AfterEach(func() {
		server.Close()
		manager.Stop()
	})

	It("should report the manager state", func() {
		buf := primitive.NewStagingBuffer()
		manager.Register(buf)

		status, body := get("/api/state")

		Expect(status).To(Equal(http.StatusOK))

		var rsp stateRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.Name).To(Equal("Manager"))
		Expect(rsp.State).To(Equal("Created"))
		Expect(rsp.Primitives).To(Equal(1))
		Expect(rsp.PeriodNs).To(Equal(int64(20 * time.Millisecond)))
	})

	It("should list actuators", func() {
		_, body := get("/api/actuators")

		Expect(string(body)).To(MatchJSON(`["head_z"]`))
	})

	It("should show actuator properties", func() {
		Expect(motor.SetProperty(actuator.GoalPosition, 12)).To(Succeed())

		status, body := get("/api/actuator/head_z")

		Expect(status).To(Equal(http.StatusOK))

		values := map[string]float64{}
		Expect(json.Unmarshal(body, &values)).To(Succeed())
		Expect(values).To(HaveKeyWithValue(actuator.GoalPosition, 12.0))
	})

	It("should show a copy of the motor state", func() {
		Expect(motor.SetProperty(actuator.GoalPosition, 12)).To(Succeed())

		status, body := get("/api/component/head_z")

		Expect(status).To(Equal(http.StatusOK))

		var rsp struct {
			Root string                     `json:"r"`
			Dict map[string]json.RawMessage `json:"dict"`
		}
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.Root).To(Equal("0"))
		Expect(string(rsp.Dict["0"])).To(ContainSubstring("MotorSnapshot"))
		Expect(string(body)).To(ContainSubstring(`"goal_position"`))
	})

	It("should read motors while the manager writes them", func() {
		buf := primitive.NewStagingBuffer()
		manager.Register(buf)
		Expect(manager.Start()).To(Succeed())

		stop := make(chan struct{})
		staged := make(chan struct{})
		go func() {
			defer close(staged)
			for i := 0; ; i++ {
				select {
				case <-stop:
					return
				default:
				}

				buf.Stage("head_z", actuator.GoalPosition, float64(i%90))
				buf.Stage("head_z", actuator.MovingSpeed, float64(i%50))
			}
		}()

		for i := 0; i < 50; i++ {
			status, _ := get("/api/component/head_z")
			Expect(status).To(Equal(http.StatusOK))

			status, _ = get("/api/actuator/head_z")
			Expect(status).To(Equal(http.StatusOK))
		}

		close(stop)
		<-staged

		Expect(manager.Ticks()).To(BeNumerically(">", 0))
	})

	It("should answer 503 without a manager", func() {
		bare := httptest.NewServer(NewMonitor().Handler())
		defer bare.Close()

		for _, path := range []string{
			"/api/state", "/api/actuators", "/api/component/head_z",
		} {
			rsp, err := http.Get(bare.URL + path)
			Expect(err).NotTo(HaveOccurred())
			rsp.Body.Close()

			Expect(rsp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		}
	})

	It("should answer 404 for unknown actuators", func() {
		status, _ := get("/api/actuator/tail")

		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("should list primitives with their ids", func() {
		p := primitive.NewLoopPrimitive(manager, 10*primitive.Hz,
			func(time.Duration, *primitive.StagingBuffer) {})
		Expect(p.Start()).To(Succeed())
		defer p.Stop()

		_, body := get("/api/primitives")

		var rsp []primitiveRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].ID).To(Equal(p.ID()))
	})

	It("should report tick statistics of a running manager", func() {
		Expect(manager.Start()).To(Succeed())
		Eventually(tracer.TotalCount).Should(BeNumerically(">=", 2))

		_, body := get("/api/ticks")

		var rsp tracing.TickSummary
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.Count).To(BeNumerically(">=", 2))
	})

	It("should answer 404 on ticks without a tracer", func() {
		m.RegisterTickTracer(nil)

		status, _ := get("/api/ticks")

		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("should reject a bad profile duration", func() {
		status, _ := get("/api/profile?seconds=abc")

		Expect(status).To(Equal(http.StatusBadRequest))
	})

	It("should serve the page", func() {
		status, body := get("/")

		Expect(status).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix("<!DOCTYPE html>"))
	})

	It("should serve the page from a directory", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "index.html"),
			[]byte("<!DOCTYPE html><p>local"), 0o600)).To(Succeed())

		local := httptest.NewServer(NewMonitor().WithAssetDir(dir).Handler())
		defer local.Close()

		rsp, err := http.Get(local.URL + "/")
		Expect(err).NotTo(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(body)).To(ContainSubstring("local"))
	})

	It("should start and stop a server", func() {
		other := NewMonitor().WithPortNumber(80)
		other.RegisterManager(manager)

		url, err := other.StartServer()
		Expect(err).NotTo(HaveOccurred())
		Expect(url).To(HavePrefix("http://localhost:"))

		Expect(other.StopServer(context.Background())).To(Succeed())
		Expect(other.StopServer(context.Background())).To(Succeed())
	})
})
