package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/sarchlab/motorarbiter/actuator"
	"github.com/sarchlab/motorarbiter/datarecording"
	"github.com/sarchlab/motorarbiter/hooking"
	"github.com/sarchlab/motorarbiter/monitoring"
	"github.com/sarchlab/motorarbiter/monitoring/web"
	"github.com/sarchlab/motorarbiter/primitive"
	"github.com/sarchlab/motorarbiter/robotconfig"
	"github.com/sarchlab/motorarbiter/tracing"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a sinus and a cosinus primitive on a simulated robot.",
	Long: `Run builds the motors of the robot description, starts the ` +
		`arbitration loop, and starts a sinus and a cosinus primitive. ` +
		`When both primitives drive the same motors, the loop merges their ` +
		`orders with the configured reduction. The command returns when ` +
		`the duration elapses or on interrupt.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		opts, err := readRunOptions(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(
			cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return run(ctx, opts)
	},
}

type runOptions struct {
	config      string
	duration    time.Duration
	monitorPort int
	openMonitor bool
	monitor     bool
	monitorPage string
	record      string
	logOverruns bool
	sinusGroup  string
	cosGroup    string
	params      primitive.SinusParams
	refresh     primitive.Freq
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.Duration("duration", 10*time.Second,
		"How long to run. Zero runs until interrupted.")
	f.Bool("monitor", false, "Serve the monitor while running.")
	f.Int("monitor-port", envInt("ARBITER_MONITOR_PORT", 0),
		"Port of the monitor. Zero picks a random port.")
	f.Bool("open-monitor", false, "Open the monitor in a browser.")
	f.String("monitor-page", envString("ARBITER_MONITOR_PAGE", ""),
		"Serve the monitor page from this directory instead of the "+
			"built-in one. \"source\" selects the copy in the source tree.")
	f.String("record", envString("ARBITER_RECORD", ""),
		"Record every tick into this SQLite file (without extension).")
	f.Bool("log-overruns", false, "Log the ticks that overrun the period.")
	f.String("sinus-group", "",
		"Group or motor driven by the sinus. Empty means every motor.")
	f.String("cosinus-group", "",
		"Group or motor driven by the cosinus. Empty means every motor.")
	f.Float64("sinus-amp", envFloat("ARBITER_SINUS_AMP", 30),
		"Amplitude of the primitives, in degrees.")
	f.Float64("sinus-freq", envFloat("ARBITER_SINUS_FREQ", 0.5),
		"Frequency of the primitives, in Hz.")
	f.Float64("sinus-offset", 0, "Offset of the primitives, in degrees.")
	f.Float64("refresh", 50, "Update rate of the primitives, in Hz.")
}

func readRunOptions(cmd *cobra.Command) (runOptions, error) {
	f := cmd.Flags()
	opts := runOptions{}

	opts.config, _ = f.GetString("config")
	opts.duration, _ = f.GetDuration("duration")
	opts.monitor, _ = f.GetBool("monitor")
	opts.monitorPort, _ = f.GetInt("monitor-port")
	opts.openMonitor, _ = f.GetBool("open-monitor")
	opts.monitorPage, _ = f.GetString("monitor-page")
	if opts.monitorPage == "source" {
		opts.monitorPage = web.SourceDir()
	}
	opts.record, _ = f.GetString("record")
	opts.logOverruns, _ = f.GetBool("log-overruns")
	opts.sinusGroup, _ = f.GetString("sinus-group")
	opts.cosGroup, _ = f.GetString("cosinus-group")
	opts.params.Amp, _ = f.GetFloat64("sinus-amp")
	opts.params.Freq, _ = f.GetFloat64("sinus-freq")
	opts.params.Offset, _ = f.GetFloat64("sinus-offset")

	refresh, _ := f.GetFloat64("refresh")
	if refresh <= 0 {
		return opts, fmt.Errorf("refresh must be positive, got %g", refresh)
	}
	opts.refresh = primitive.Freq(refresh)

	if opts.duration < 0 {
		return opts, fmt.Errorf("duration must not be negative")
	}

	if opts.openMonitor {
		opts.monitor = true
	}

	return opts, nil
}

func run(ctx context.Context, opts runOptions) error {
	robot, err := robotconfig.Load(opts.config)
	if err != nil {
		return err
	}

	motors := robot.BuildMotors()
	for _, m := range motors {
		if err := m.SetProperty(actuator.Compliant, 0); err != nil {
			return err
		}
	}

	mgr, err := robot.ManagerBuilder(motors).Build(robot.Name)
	if err != nil {
		return err
	}

	tickTracer := tracing.NewTickTimeTracer()
	mgr.AcceptHook(tickTracer)
	mgr.AcceptHook(tracing.NewLogTracer(nil, opts.logOverruns))
	mgr.AcceptHook(newServoEcho(motors))

	if opts.record != "" {
		recorder := datarecording.New(opts.record)
		defer recorder.Flush()

		mgr.AcceptHook(tracing.NewRecordingTracer(robot.Name, recorder))
	}

	if opts.monitor {
		stop, err := serveMonitor(mgr, tickTracer, opts)
		if err != nil {
			return err
		}
		defer stop()
	}

	prims, err := createPrimitives(mgr, robot, opts)
	if err != nil {
		return err
	}

	if err := mgr.Start(); err != nil {
		return err
	}

	for _, p := range prims {
		if err := p.Start(); err != nil {
			mgr.Stop()
			return err
		}
	}

	wait(ctx, opts.duration)

	for _, p := range prims {
		p.Stop()
	}
	mgr.Stop()

	s := tickTracer.Summary()
	fmt.Fprintf(os.Stderr,
		"%s: %d ticks, average %v, max %v, %d overruns, %d failed writes\n",
		robot.Name, s.Count, s.AverageTime, s.MaxTime, s.Overruns,
		s.WriteFailures)

	return nil
}

func createPrimitives(
	mgr *primitive.Manager,
	robot *robotconfig.Robot,
	opts runOptions,
) ([]*primitive.LoopPrimitive, error) {
	sinusMotors, err := robot.Group(opts.sinusGroup)
	if err != nil {
		return nil, err
	}

	cosMotors, err := robot.Group(opts.cosGroup)
	if err != nil {
		return nil, err
	}

	return []*primitive.LoopPrimitive{
		primitive.NewSinus(mgr, opts.refresh, sinusMotors, opts.params),
		primitive.NewCosinus(mgr, opts.refresh, cosMotors, opts.params),
	}, nil
}

func serveMonitor(
	mgr *primitive.Manager,
	tickTracer *tracing.TickTimeTracer,
	opts runOptions,
) (func(), error) {
	monitor := monitoring.NewMonitor().
		WithPortNumber(opts.monitorPort).
		WithAssetDir(opts.monitorPage)
	monitor.RegisterManager(mgr)
	monitor.RegisterTickTracer(tickTracer)

	url, err := monitor.StartServer()
	if err != nil {
		return nil, err
	}

	if opts.openMonitor {
		if err := browser.OpenURL(url); err != nil {
			log.Printf("cannot open the monitor: %v", err)
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if err := monitor.StopServer(ctx); err != nil {
			log.Printf("cannot stop the monitor: %v", err)
		}
	}, nil
}

func wait(ctx context.Context, duration time.Duration) {
	if duration == 0 {
		<-ctx.Done()
		return
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// servoEcho stands in for the hardware: after each tick, every stiff motor
// reports that it reached its goal position.
type servoEcho struct {
	motors []*actuator.Motor
}

func newServoEcho(motors []*actuator.Motor) *servoEcho {
	return &servoEcho{motors: motors}
}

func (e *servoEcho) Func(ctx hooking.HookCtx) {
	if ctx.Pos != primitive.HookPosTickEnd {
		return
	}

	for _, m := range e.motors {
		if m.Raw(actuator.Compliant) != 0 {
			continue
		}

		raw := m.Raw(actuator.GoalPosition)
		if err := m.SetPresent(actuator.PresentPosition, raw); err != nil {
			log.Panic(err)
		}
	}
}
