package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// MemorySink pairs a Sink with access to the raw CSV bytes it buffered,
// for tests and for model authors who want report contents without
// touching the filesystem.
type MemorySink struct {
	*Sink

	mu   sync.Mutex
	bufs map[string]*bytes.Buffer
}

// NewMemorySink builds a Sink that buffers every report in memory.
func NewMemorySink() *Sink {
	return newMemorySink().Sink
}

// NewInspectableMemorySink is NewMemorySink plus a Contents accessor,
// for tests that need to assert on what was written.
func NewInspectableMemorySink() *MemorySink {
	return newMemorySink()
}

func newMemorySink() *MemorySink {
	m := &MemorySink{bufs: make(map[string]*bytes.Buffer)}
	m.Sink = NewSink(func(name string) (io.Writer, io.Closer, error) {
		buf := &bytes.Buffer{}
		m.mu.Lock()
		m.bufs[name] = buf
		m.mu.Unlock()
		return buf, nil, nil
	})
	return m
}

// Contents returns the raw CSV bytes written so far for name, and whether
// that report has been opened at all. csv.Writer buffers internally, so
// call Close (or Sink.Close) before Contents to see rows written since
// the last implicit flush.
func (m *MemorySink) Contents(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf, ok := m.bufs[name]
	if !ok {
		return "", false
	}
	return buf.String(), true
}

// NewFileSink builds a Sink writing CSV files to dir, named
// "<prefix><name>.csv". If forceOverwrite is false and a file already
// exists, opening that report fails instead of truncating it.
func NewFileSink(dir, prefix string, forceOverwrite bool) *Sink {
	return NewSink(func(name string) (io.Writer, io.Closer, error) {
		path := filepath.Join(dir, prefix+name+".csv")
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if !forceOverwrite {
			flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
		}
		f, err := os.OpenFile(path, flags, 0644)
		if err != nil {
			if !forceOverwrite && os.IsExist(err) {
				return nil, nil, fmt.Errorf("report: %s already exists (use --force-overwrite)", path)
			}
			return nil, nil, err
		}
		return f, f, nil
	})
}
