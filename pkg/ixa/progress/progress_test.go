package progress_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CDCgov/ixa-core/pkg/ixa/progress"
)

func TestBarDrawsForNonFileWriter(t *testing.T) {
	var buf bytes.Buffer
	bar := progress.New(&buf, 10)
	bar.Advance(5)
	bar.Finish()
	// New checks for a terminal only when the writer is an *os.File; any
	// other writer, such as a bytes.Buffer, gets the bar drawn normally.
	assert.NotEmpty(t, buf.String())
}

func TestBarDisabledWithZeroMax(t *testing.T) {
	var buf bytes.Buffer
	bar := progress.New(&buf, 0)
	bar.Advance(5)
	bar.Finish()
	assert.Empty(t, buf.String())
}

func TestBarDrawsIncreasingPercentage(t *testing.T) {
	var buf bytes.Buffer
	bar := progress.New(&buf, 100)
	bar.Advance(0)
	bar.Advance(50)
	bar.Advance(100)
	bar.Finish()

	out := buf.String()
	assert.True(t, strings.Contains(out, "50%"))
	assert.True(t, strings.Contains(out, "100%"))
}

func TestBarSkipsRedrawWhenPercentageUnchanged(t *testing.T) {
	var buf bytes.Buffer
	bar := progress.New(&buf, 100)
	bar.Advance(10)
	first := buf.Len()
	bar.Advance(10.4) // still 10%
	assert.Equal(t, first, buf.Len())
}
