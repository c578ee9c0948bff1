package debugger_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDCgov/ixa-core/pkg/ixa"
	"github.com/CDCgov/ixa-core/pkg/ixa/debugger"
)

func TestREPLNextStepsOnePlanAtATime(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	fired := 0
	ctx.Scheduler().AddPlan(1.0, func(*ixa.Context) { fired++ })
	ctx.Scheduler().AddPlan(2.0, func(*ixa.Context) { fired++ })

	in := strings.NewReader("next\nnext\nquit\n")
	var out bytes.Buffer
	r := debugger.New(in, &out)

	require.NoError(t, r.Run(ctx, ctx.Scheduler()))
	assert.Equal(t, 2, fired)
}

func TestREPLContinueRunsToCompletion(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	fired := 0
	ctx.Scheduler().AddPlan(1.0, func(*ixa.Context) { fired++ })
	ctx.Scheduler().AddPlan(2.0, func(*ixa.Context) { fired++ })

	in := strings.NewReader("continue\n")
	var out bytes.Buffer
	r := debugger.New(in, &out)

	require.NoError(t, r.Run(ctx, ctx.Scheduler()))
	assert.Equal(t, 2, fired)
}

func TestREPLUnrecognizedCommandReportsErrorAndContinues(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	in := strings.NewReader("bogus\nquit\n")
	var out bytes.Buffer
	r := debugger.New(in, &out)

	require.NoError(t, r.Run(ctx, ctx.Scheduler()))
	assert.Contains(t, out.String(), `unrecognized command "bogus"`)
}

func TestREPLPopulationUsesCustomReporter(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	in := strings.NewReader("population\nquit\n")
	var out bytes.Buffer
	r := debugger.New(in, &out).WithPopulationReporter(func(*ixa.Context) string { return "42 people" })

	require.NoError(t, r.Run(ctx, ctx.Scheduler()))
	assert.Contains(t, out.String(), "42 people")
}
