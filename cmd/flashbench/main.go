// flashbench runs the flash bring-up scenario suite against the simulated
// controller and device, optionally recording a trace database and serving a
// monitoring endpoint while the suite runs.
package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/fpgasim/flashsim/acceptance"
	"github.com/fpgasim/flashsim/monitoring"
	"github.com/fpgasim/flashsim/sim"
	"github.com/fpgasim/flashsim/trace"
	"github.com/fpgasim/flashsim/wire"
)

var (
	modeFlag    string
	seedFlag    uint64
	imageFlag   string
	traceDBFlag string
	monitorFlag bool
	monitorPort int
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "flashbench",
	Short: "flashbench runs the flash controller bring-up suite in simulation.",
	Long: `flashbench connects a behavioral flash controller to a ` +
		`cycle-stepped device model and runs the bring-up scenario suite ` +
		`against the pair: identification, status, single and vector reads, ` +
		`sector erase, and page programming, each verified word for word.`,
	RunE: runBench,
}

func init() {
	// A .env file can carry FLASHBENCH_* defaults for the flags below.
	_ = godotenv.Load()

	rootCmd.Flags().StringVar(&modeFlag, "mode",
		envOr("FLASHBENCH_MODE", "qspi"),
		"serial bus width: spi, dspi, or qspi")
	rootCmd.Flags().Uint64Var(&seedFlag, "seed", 1,
		"seed of the random array image")
	rootCmd.Flags().StringVar(&imageFlag, "image", "",
		"flat binary file loaded at the start of the array")
	rootCmd.Flags().StringVar(&traceDBFlag, "trace-db",
		os.Getenv("FLASHBENCH_TRACE_DB"),
		"record bus transactions and flash commands into this SQLite file")
	rootCmd.Flags().BoolVar(&monitorFlag, "monitor", false,
		"serve simulation state over HTTP while the suite runs")
	rootCmd.Flags().IntVar(&monitorPort, "monitor-port", 0,
		"port of the monitoring server, 0 picks a free one")
	rootCmd.Flags().BoolVar(&verboseFlag, "verbose", false,
		"log every scenario as it starts")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// pauseHook holds the engine between edges while the monitor is paused.
type pauseHook struct {
	monitor *monitoring.Monitor
}

func (h pauseHook) Func(ctx sim.HookCtx) {
	if ctx.Pos != sim.HookPosBeforeEdge {
		return
	}
	for h.monitor.Paused() {
		time.Sleep(100 * time.Millisecond)
	}
}

func runBench(_ *cobra.Command, _ []string) error {
	mode, err := wire.ParseIOMode(modeFlag)
	if err != nil {
		return err
	}

	rig := acceptance.NewRig(mode, seedFlag)

	if imageFlag != "" {
		if err := rig.Device.LoadImage(0, imageFlag); err != nil {
			return fmt.Errorf("cannot load image: %w", err)
		}
	}

	if traceDBFlag != "" {
		recorder := trace.NewRecorder(traceDBFlag)
		tracer := trace.NewTracer(recorder, rig.Engine)
		rig.Driver.WithRecorder(tracer)
		rig.Device.AcceptHook(tracer)
	}

	var monitor *monitoring.Monitor
	if monitorFlag {
		monitor = monitoring.NewMonitor().WithPortNumber(monitorPort)
		monitor.RegisterEngine(rig.Engine)
		monitor.RegisterComponent(rig.Device)
		monitor.RegisterComponent(rig.Core)
		url := monitor.StartServer()
		monitor.OpenBrowser(url)
		rig.Engine.AcceptHook(pauseHook{monitor: monitor})
	}

	scenarios := acceptance.Scenarios()

	var bar *monitoring.ProgressBar
	if monitor != nil {
		bar = monitor.CreateProgressBar("scenarios",
			uint64(len(scenarios)))
	}

	for _, s := range scenarios {
		if verboseFlag {
			log.Printf("running %s", s.Name)
		}

		if err := s.Run(rig); err != nil {
			rig.Engine.TickN(8)
			fmt.Fprintf(os.Stderr, "FAIL %s: %s\n", s.Name, err)
			atexit.Exit(1)
		}

		if bar != nil {
			bar.IncrementFinished(1)
		}
	}

	fmt.Printf("PASS: %d scenarios in %s mode, %d cycles\n",
		len(scenarios), mode, rig.Engine.CurrentCycle())

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}
