// Command ixa-run drives the sir example model from the command line,
// wiring every flag the core's ambient stack exposes: seeding, the
// debugger REPL, log-level filtering, a progress bar, and report/
// profiling output.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/CDCgov/ixa-core/examples/sir"
	"github.com/CDCgov/ixa-core/pkg/ixa"
	"github.com/CDCgov/ixa-core/pkg/ixa/config"
	"github.com/CDCgov/ixa-core/pkg/ixa/debugger"
	"github.com/CDCgov/ixa-core/pkg/ixa/obs"
	"github.com/CDCgov/ixa-core/pkg/ixa/progress"
	"github.com/CDCgov/ixa-core/pkg/ixa/report"
)

// debuggerImmediate is the value --debugger takes when given without a
// time argument, meaning "break before t=0" rather than "break after t".
const debuggerImmediate = "immediate"

type flags struct {
	seed                uint64
	debugger            string
	debuggerSet         bool
	logLevel            string
	verbosity           int
	timelineProgressMax float64
	output              string
	prefix              string
	forceOverwrite      bool
	noStats             bool
	scenario            string

	population        int
	initialInfections int
	infectiousPeriod  float64
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "ixa-run",
		Short: "Run the sir example simulation",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.debuggerSet = cmd.Flags().Changed("debugger")
			return run(f)
		},
	}

	fs := cmd.Flags()
	fs.Uint64Var(&f.seed, "seed", 0, "seed for RNG init")
	fs.Uint64Var(&f.seed, "random-seed", 0, "alias for --seed")
	fs.StringVar(&f.debugger, "debugger", "", "enter the debugger before t=0, or after the given time")
	// pflag only treats a flag as optional-argument when NoOptDefVal is
	// non-empty, so a bare --debugger (meaning "break before t=0") needs a
	// sentinel rather than the empty string.
	fs.Lookup("debugger").NoOptDefVal = debuggerImmediate
	fs.StringVar(&f.logLevel, "log-level", "", "comma-separated module=LEVEL entries")
	fs.CountVarP(&f.verbosity, "verbose", "v", "increase verbosity (-v, -vv, -vvv)")
	fs.Float64Var(&f.timelineProgressMax, "timeline-progress-max", 0, "enable a progress bar scaled to this final time")
	fs.StringVar(&f.output, "output", "", "report/profiling output directory")
	fs.StringVar(&f.prefix, "prefix", "", "report/profiling filename prefix")
	fs.BoolVar(&f.forceOverwrite, "force-overwrite", false, "overwrite existing report/profiling files")
	fs.BoolVar(&f.noStats, "no-stats", false, "suppress profiling JSON and poison-plan persistence")
	fs.StringVar(&f.scenario, "scenario", "", "scenario parameter file (YAML or JSON)")

	fs.IntVar(&f.population, "population", 1000, "sir: total population")
	fs.IntVar(&f.initialInfections, "initial-infections", 10, "sir: people infectious at t=0")
	fs.Float64Var(&f.infectiousPeriod, "infectious-period", 4.0, "sir: mean infectious duration")

	return cmd
}

func run(f flags) error {
	params := sir.Params{
		Population:        f.population,
		InitialInfections: f.initialInfections,
		InfectiousPeriod:  f.infectiousPeriod,
	}
	if f.scenario != "" {
		cfg, err := config.FromFile(f.scenario)
		if err != nil {
			return err
		}
		params.Population = cfg.Int("population", params.Population)
		params.InitialInfections = cfg.Int("initial_infections", params.InitialInfections)
		params.InfectiousPeriod = cfg.Float("infectious_period", params.InfectiousPeriod)
	}

	logger, err := buildLogger(f)
	if err != nil {
		return err
	}

	opts := []ixa.ContextOption{
		ixa.WithLogger(logger),
		ixa.WithSeed(f.seed),
		ixa.WithMetrics(obs.NewMetrics()),
		ixa.WithSpanManager(obs.NewSpanManager()),
	}
	if f.output != "" {
		opts = append(opts, ixa.WithReportSink(report.NewFileSink(f.output, f.prefix, f.forceOverwrite)))
		if !f.noStats {
			sink, err := obs.NewSQLitePoisonSink(filepath.Join(f.output, f.prefix+"poison.sqlite"))
			if err != nil {
				return err
			}
			opts = append(opts, ixa.WithPoisonSink(sink))
		}
	}

	ctx := ixa.NewContext(context.Background(), opts...)
	defer ctx.Close()

	if f.timelineProgressMax > 0 {
		bar := progress.New(os.Stderr, f.timelineProgressMax)
		ctx.Scheduler().OnAdvance(bar.Advance)
		defer bar.Finish()
	}

	if err := sir.Build(ctx, params); err != nil {
		return err
	}

	if f.debuggerSet {
		if err := runDebugger(ctx, f.debugger); err != nil {
			return err
		}
	} else if err := ctx.Scheduler().Execute(ctx); err != nil {
		return err
	}

	if f.output != "" && !f.noStats {
		profile := ctx.Profiling()
		if err := obs.WriteProfilingJSON(f.output, f.prefix, f.forceOverwrite, profile); err != nil {
			return err
		}
	}

	return nil
}

func runDebugger(ctx *ixa.Context, breakAt string) error {
	repl := debugger.New(os.Stdin, os.Stdout).WithPopulationReporter(func(ctx *ixa.Context) string {
		q := ixa.Query[sir.Person]{ixa.Where(sir.DiseaseStatus, sir.Infectious)}
		return fmt.Sprintf("%d infectious", ixa.QueryEntityCount(ctx, q))
	})

	if breakAt != "" && breakAt != debuggerImmediate {
		breakTime, err := strconv.ParseFloat(breakAt, 64)
		if err != nil {
			return fmt.Errorf("invalid --debugger time %q: %w", breakAt, err)
		}
		stopped := false
		ctx.Scheduler().AddPlanWithPhase(breakTime, func(ctx *ixa.Context) {
			stopped = true
		}, ixa.PhaseFirst)

		// Run until the breakpoint plan fires, then fall through to the
		// REPL. Shutdown() is terminal (the scheduler never resumes once
		// set), so the break is tracked locally instead.
		for !stopped {
			ran, err := ctx.Scheduler().Step(ctx)
			if err != nil {
				return err
			}
			if !ran {
				break
			}
		}
	}

	// "continue" runs the scheduler to completion itself; "quit"/"exit"
	// and EOF return here without running any remaining plans.
	return repl.Run(ctx, ctx.Scheduler())
}

func buildLogger(f flags) (*slog.Logger, error) {
	levels, err := obs.ParseLevels(f.logLevel)
	if err != nil {
		return nil, err
	}
	fallback := obs.VerbosityLevel(f.verbosity)
	handler := obs.NewModuleHandler(slog.NewTextHandler(os.Stderr, nil), levels, fallback)
	return slog.New(handler), nil
}
