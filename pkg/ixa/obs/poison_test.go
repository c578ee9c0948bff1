package obs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	recorded []PoisonedPlan
	closed   bool
}

func (f *fakeSink) Record(p PoisonedPlan) error { f.recorded = append(f.recorded, p); return nil }
func (f *fakeSink) Close() error                { f.closed = true; return nil }

func TestPoisonLedgerRetainsInOrder(t *testing.T) {
	l := NewPoisonLedger(3, nil)
	l.Record(PoisonedPlan{Time: 1, Value: "a"})
	l.Record(PoisonedPlan{Time: 2, Value: "b"})

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Value)
	assert.Equal(t, "b", all[1].Value)
}

func TestPoisonLedgerEvictsOldestAtCapacity(t *testing.T) {
	l := NewPoisonLedger(2, nil)
	l.Record(PoisonedPlan{Time: 1, Value: "a"})
	l.Record(PoisonedPlan{Time: 2, Value: "b"})
	l.Record(PoisonedPlan{Time: 3, Value: "c"})

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Value)
	assert.Equal(t, "c", all[1].Value)
}

func TestPoisonLedgerMirrorsToSink(t *testing.T) {
	sink := &fakeSink{}
	l := NewPoisonLedger(4, sink)
	l.Record(PoisonedPlan{Time: 1, Value: "a"})

	require.Len(t, sink.recorded, 1)
	assert.Equal(t, "a", sink.recorded[0].Value)
}

func TestPoisonLedgerCloseClosesSink(t *testing.T) {
	sink := &fakeSink{}
	l := NewPoisonLedger(4, sink)

	require.NoError(t, l.Close())
	assert.True(t, sink.closed)
}

func TestPoisonLedgerCloseWithNilSinkIsNoop(t *testing.T) {
	l := NewPoisonLedger(4, nil)
	assert.NoError(t, l.Close())
}

func TestSQLitePoisonSinkRoundTrips(t *testing.T) {
	sink, err := NewSQLitePoisonSink(":memory:")
	require.NoError(t, err)
	defer sink.Close()

	require.NoError(t, sink.Record(PoisonedPlan{Time: 1.5, Value: "boom", Stack: "..."}))

	var count int
	require.NoError(t, sink.db.QueryRow("SELECT COUNT(*) FROM poisoned_plans").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSQLitePoisonSinkRejectsAfterClose(t *testing.T) {
	sink, err := NewSQLitePoisonSink(":memory:")
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	err = sink.Record(PoisonedPlan{Time: 1})
	assert.ErrorIs(t, err, errPoisonSinkClosed)
}
