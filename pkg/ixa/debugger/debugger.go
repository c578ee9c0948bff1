// Package debugger implements the interactive REPL entered via the
// --debugger CLI flag: a line-oriented loop over stdin that can step the
// scheduler one plan at a time, resume it to completion, or report the
// current population, without the model author wiring anything beyond
// calling Run at the point the flag requests a break.
package debugger

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/CDCgov/ixa-core/pkg/ixa"
)

// Stepper is the subset of *ixa.Scheduler the REPL drives. Declared as an
// interface so tests can substitute a fake without running a real
// simulation.
type Stepper interface {
	Step(ctx *ixa.Context) (ran bool, err error)
	Execute(ctx *ixa.Context) error
	CurrentTime() float64
	Pending() int
}

// PopulationReporter answers the REPL's "population" command. Model
// authors register one via WithPopulationReporter; without one,
// "population" reports only the pending-plan count.
type PopulationReporter func(ctx *ixa.Context) string

// REPL reads commands from r and writes prompts/output to w, driving s
// against ctx until "continue", "quit", or "exit", or until r reaches EOF.
type REPL struct {
	in         *bufio.Scanner
	out        io.Writer
	population PopulationReporter
}

// New builds a REPL reading from in and writing to out.
func New(in io.Reader, out io.Writer) *REPL {
	return &REPL{in: bufio.NewScanner(in), out: out}
}

// WithPopulationReporter installs fn as the "population" command's
// handler.
func (r *REPL) WithPopulationReporter(fn PopulationReporter) *REPL {
	r.population = fn
	return r
}

// Run drives s against ctx until the user types "continue" (which also
// runs s to completion before returning), "quit"/"exit" (which returns
// without running further), or stdin closes. It returns the error from
// Execute when "continue" is used; an error from a "next" step is printed
// and not returned, and "quit"/"exit" or end of input return nil.
func (r *REPL) Run(ctx *ixa.Context, s Stepper) error {
	fmt.Fprintln(r.out, "entering debugger; commands: population, next, continue, quit/exit")
	for {
		fmt.Fprintf(r.out, "(t=%.2f, pending=%d) > ", s.CurrentTime(), s.Pending())
		if !r.in.Scan() {
			return nil
		}
		cmd := strings.TrimSpace(r.in.Text())
		switch cmd {
		case "":
			continue
		case "population":
			if r.population != nil {
				fmt.Fprintln(r.out, r.population(ctx))
			} else {
				fmt.Fprintf(r.out, "%d plans pending\n", s.Pending())
			}
		case "next":
			ran, err := s.Step(ctx)
			if err != nil {
				fmt.Fprintf(r.out, "plan error: %v\n", err)
			}
			if !ran {
				fmt.Fprintln(r.out, "no more plans pending")
			}
		case "continue":
			return s.Execute(ctx)
		case "quit", "exit":
			return nil
		default:
			fmt.Fprintf(r.out, "unrecognized command %q\n", cmd)
		}
	}
}
