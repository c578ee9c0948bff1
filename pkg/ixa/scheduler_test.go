package ixa_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDCgov/ixa-core/pkg/ixa"
)

func TestSchedulerFiresPlansInTimeOrder(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	var order []float64
	ctx.Scheduler().AddPlan(2.0, func(ctx *ixa.Context) { order = append(order, 2.0) })
	ctx.Scheduler().AddPlan(1.0, func(ctx *ixa.Context) { order = append(order, 1.0) })

	require.NoError(t, ctx.Scheduler().Execute(ctx))
	assert.Equal(t, []float64{1.0, 2.0}, order)
}

func TestSchedulerOrdersByPhaseWithinSameTime(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	var order []string
	ctx.Scheduler().AddPlanWithPhase(1.0, func(ctx *ixa.Context) { order = append(order, "last") }, ixa.PhaseLast)
	ctx.Scheduler().AddPlanWithPhase(1.0, func(ctx *ixa.Context) { order = append(order, "first") }, ixa.PhaseFirst)
	ctx.Scheduler().AddPlan(1.0, func(ctx *ixa.Context) { order = append(order, "normal") })

	require.NoError(t, ctx.Scheduler().Execute(ctx))
	assert.Equal(t, []string{"first", "normal", "last"}, order)
}

func TestCancelPlanPreventsItFromFiring(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	fired := false
	h := ctx.Scheduler().AddPlan(1.0, func(ctx *ixa.Context) { fired = true })
	ctx.Scheduler().CancelPlan(h)

	require.NoError(t, ctx.Scheduler().Execute(ctx))
	assert.False(t, fired)
}

func TestPeriodicPlanReschedulesUntilShutdown(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	count := 0
	ctx.Scheduler().AddPeriodicPlanWithPhase(1.0, func(ctx *ixa.Context) {
		count++
		if count == 3 {
			ctx.RequestShutdown("enough")
		}
	}, ixa.PhaseNormal)

	require.NoError(t, ctx.Scheduler().Execute(ctx))
	assert.Equal(t, 3, count)
	require.NotNil(t, ctx.ShutdownReason())
	assert.Equal(t, "enough", ctx.ShutdownReason().Reason)
}

func TestCancelPlanStopsAPeriodicSeriesMidStream(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	count := 0
	var h ixa.PlanHandle
	h = ctx.Scheduler().AddPeriodicPlanWithPhase(1.0, func(ctx *ixa.Context) {
		count++
		if count == 2 {
			ctx.Scheduler().CancelPlan(h)
		}
	}, ixa.PhaseNormal)
	ctx.Scheduler().AddPlan(10.0, func(*ixa.Context) {})

	require.NoError(t, ctx.Scheduler().Execute(ctx))
	assert.Equal(t, 2, count, "canceling from inside the second firing must stop the third")
}

func TestPanickingPlanRecordsPoisonedPlanAndContinues(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	ranAfter := false
	ctx.Scheduler().AddPlan(1.0, func(ctx *ixa.Context) { panic("boom") })
	ctx.Scheduler().AddPlan(2.0, func(ctx *ixa.Context) { ranAfter = true })

	err := ctx.Scheduler().Execute(ctx)
	require.Error(t, err)
	assert.True(t, ranAfter)

	poisoned := ctx.PoisonedPlans()
	require.Len(t, poisoned, 1)
	assert.Equal(t, 1.0, poisoned[0].Time)
}

func TestStepRunsAtMostOnePlan(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	count := 0
	ctx.Scheduler().AddPlan(1.0, func(ctx *ixa.Context) { count++ })
	ctx.Scheduler().AddPlan(2.0, func(ctx *ixa.Context) { count++ })

	ran, err := ctx.Scheduler().Step(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, ctx.Scheduler().Pending())

	ran, err = ctx.Scheduler().Step(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, count)

	ran, err = ctx.Scheduler().Step(ctx)
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestOnAdvanceHookFiresWithPlanTime(t *testing.T) {
	ctx := ixa.NewContext(context.Background())
	defer ctx.Close()

	var seen []float64
	ctx.Scheduler().OnAdvance(func(now float64) { seen = append(seen, now) })
	ctx.Scheduler().AddPlan(1.0, func(ctx *ixa.Context) {})
	ctx.Scheduler().AddPlan(2.0, func(ctx *ixa.Context) {})

	require.NoError(t, ctx.Scheduler().Execute(ctx))
	assert.Equal(t, []float64{1.0, 2.0}, seen)
}
