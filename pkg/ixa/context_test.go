package ixa_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDCgov/ixa-core/pkg/ixa"
	"github.com/CDCgov/ixa-core/pkg/ixa/obs"
)

type fakePoisonSink struct{ closed bool }

func (f *fakePoisonSink) Record(obs.PoisonedPlan) error { return nil }
func (f *fakePoisonSink) Close() error                  { f.closed = true; return nil }

func TestContextCloseClosesPoisonSink(t *testing.T) {
	sink := &fakePoisonSink{}
	ctx := ixa.NewContext(context.Background(), ixa.WithPoisonSink(sink))

	require.NoError(t, ctx.Close())
	assert.True(t, sink.closed)
}
