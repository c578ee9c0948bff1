// Package report implements the CSV report sink: one file per named
// report, header row from the first SendReport call's field order, UTF-8,
// LF-terminated, flushed when the owning Context is closed.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"sync"
)

// Field is one column of a report row.
type Field struct {
	Key   string
	Value any
}

// Row renders a Field slice, preserving caller order.
type Row []Field

func (r Row) header() []string {
	h := make([]string, len(r))
	for i, f := range r {
		h[i] = f.Key
	}
	return h
}

func (r Row) values() []string {
	v := make([]string, len(r))
	for i, f := range r {
		v[i] = fmt.Sprint(f.Value)
	}
	return v
}

// writer is one open report file: a csv.Writer plus the header it was
// opened with, so later SendReport calls are checked for a matching shape.
type writer struct {
	csv    *csv.Writer
	header []string
	closer io.Closer
}

// Opener creates the underlying io.Writer (and optional io.Closer) for a
// report named name. NewFileSink and NewMemorySink each supply one.
type Opener func(name string) (io.Writer, io.Closer, error)

// Sink is the registry of open report writers for one run. Writers are
// created lazily, on the first SendReport call naming a report.
type Sink struct {
	mu      sync.Mutex
	open    Opener
	writers map[string]*writer
	closed  bool
}

// NewSink builds a Sink that opens report files via open.
func NewSink(open Opener) *Sink {
	return &Sink{open: open, writers: make(map[string]*writer)}
}

// SendReport appends row to the named report, opening and writing the
// header row on the first call for that name. Every subsequent call for
// the same name must supply the same field keys, in the same order.
func (s *Sink) SendReport(name string, row Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("report: sink closed, cannot send %q", name)
	}

	w, ok := s.writers[name]
	if !ok {
		out, closer, err := s.open(name)
		if err != nil {
			return fmt.Errorf("report: open %q: %w", name, err)
		}
		cw := csv.NewWriter(out)
		cw.UseCRLF = false
		header := row.header()
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("report: write header for %q: %w", name, err)
		}
		w = &writer{csv: cw, header: header, closer: closer}
		s.writers[name] = w
	} else if !sameShape(w.header, row.header()) {
		return fmt.Errorf("report: %q: row fields %v do not match header %v", name, row.header(), w.header)
	}

	if err := w.csv.Write(row.values()); err != nil {
		return fmt.Errorf("report: write row for %q: %w", name, err)
	}
	return nil
}

func sameShape(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Close flushes and closes every open report writer. Safe to call more
// than once.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	for name, w := range s.writers {
		w.csv.Flush()
		if err := w.csv.Error(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("report: flush %q: %w", name, err)
		}
		if w.closer != nil {
			if err := w.closer.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("report: close %q: %w", name, err)
			}
		}
	}
	return firstErr
}
