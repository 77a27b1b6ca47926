// Package diag carries non-fatal pipeline findings (extraction misses,
// malformed dates, structural anomalies, per-case persistence failures)
// from the component that notices them to whoever audits the run.
package diag

import (
	"context"
	"log/slog"
	"sync"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindExtractionMiss Kind = "extraction_miss"
	KindDateMalformed  Kind = "date_malformed"
	KindStructural     Kind = "structural"
	KindPersistFailure Kind = "persist_failure"
)

func (k Kind) String() string { return string(k) }

// Diagnostic is a single non-fatal finding.
type Diagnostic struct {
	Kind Kind
	// Field names the extracted field, or the markup element for structural findings.
	Field string
	// Text is the offending input.
	Text string
	// Detail is an optional human-readable explanation.
	Detail string
	// CaseNumber is the source-reported case number, when known.
	CaseNumber *int
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(d Diagnostic)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Diagnostic)

func (f SinkFunc) Report(d Diagnostic) { f(d) }

// Discard drops every diagnostic.
var Discard Sink = SinkFunc(func(Diagnostic) {})

// Collector is an append-only, in-memory Sink.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Items returns a copy of everything reported so far, in report order.
func (c *Collector) Items() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

// Count returns how many diagnostics of the given kind were reported.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Len returns the total number of diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Logger returns a Sink that writes each diagnostic to logger at warn level.
func Logger(logger *slog.Logger) Sink {
	return SinkFunc(func(d Diagnostic) {
		attrs := []slog.Attr{
			slog.String("kind", d.Kind.String()),
			slog.String("field", d.Field),
			slog.String("text", d.Text),
		}
		if d.Detail != "" {
			attrs = append(attrs, slog.String("detail", d.Detail))
		}
		if d.CaseNumber != nil {
			attrs = append(attrs, slog.Int("case_number", *d.CaseNumber))
		}
		logger.LogAttrs(context.Background(), slog.LevelWarn, message(d.Kind), attrs...)
	})
}

func message(k Kind) string {
	switch k {
	case KindExtractionMiss:
		return "failed to resolve field"
	case KindDateMalformed:
		return "malformed date"
	case KindStructural:
		return "skipped entry"
	case KindPersistFailure:
		return "failed to persist case"
	}
	return "diagnostic"
}

// Tee fans every diagnostic out to all sinks in order. Nil sinks are skipped.
func Tee(sinks ...Sink) Sink {
	live := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			live = append(live, s)
		}
	}
	return SinkFunc(func(d Diagnostic) {
		for _, s := range live {
			s.Report(d)
		}
	})
}
