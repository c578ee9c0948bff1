package report_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CDCgov/ixa-core/pkg/ixa/report"
)

func TestSendReportWritesHeaderOnce(t *testing.T) {
	sink := report.NewInspectableMemorySink()

	row := report.Row{{Key: "time", Value: 1.0}, {Key: "infected", Value: 10}}
	require.NoError(t, sink.SendReport("incidence", row))
	require.NoError(t, sink.SendReport("incidence", report.Row{{Key: "time", Value: 2.0}, {Key: "infected", Value: 12}}))
	require.NoError(t, sink.Close())

	contents, ok := sink.Contents("incidence")
	require.True(t, ok)
	lines := strings.Split(strings.TrimRight(contents, "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "time,infected", lines[0])
	assert.Equal(t, "1,10", lines[1])
	assert.Equal(t, "2,12", lines[2])
}

func TestSendReportRejectsMismatchedShape(t *testing.T) {
	sink := report.NewInspectableMemorySink()

	require.NoError(t, sink.SendReport("r", report.Row{{Key: "a", Value: 1}}))
	err := sink.SendReport("r", report.Row{{Key: "b", Value: 2}})
	assert.Error(t, err)
}

func TestSendReportAfterCloseFails(t *testing.T) {
	sink := report.NewInspectableMemorySink()
	require.NoError(t, sink.Close())

	err := sink.SendReport("r", report.Row{{Key: "a", Value: 1}})
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	sink := report.NewInspectableMemorySink()
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())
}

func TestDistinctReportsAreIndependent(t *testing.T) {
	sink := report.NewInspectableMemorySink()

	require.NoError(t, sink.SendReport("a", report.Row{{Key: "x", Value: 1}}))
	require.NoError(t, sink.SendReport("b", report.Row{{Key: "y", Value: 2}}))
	require.NoError(t, sink.Close())

	ac, _ := sink.Contents("a")
	bc, _ := sink.Contents("b")
	assert.Contains(t, ac, "x")
	assert.Contains(t, bc, "y")
}
