package ingest

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/ebcovid/caseledger/internal/diag"
	"github.com/ebcovid/caseledger/internal/domain"
	"github.com/ebcovid/caseledger/internal/extract"
	"github.com/ebcovid/caseledger/internal/segment"
	"github.com/ebcovid/caseledger/pkg/ctxutil"
)

// Outcome labels what happened to one extracted case.
type Outcome string

const (
	OutcomeExtracted Outcome = "extracted"
	OutcomePersisted Outcome = "persisted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Recorder observes per-case outcomes, e.g. for metrics.
type Recorder interface {
	RecordCase(outcome string)
}

// Result summarizes one ingest run.
type Result struct {
	RunID         uuid.UUID
	PatternSet    string
	DryRun        bool
	Entries       int
	Persisted     int
	Duplicates    int
	Failed        int
	AliasesSynced int
	Diagnostics   map[diag.Kind]int
	Duration      time.Duration
}

// HasFailures reports whether any case could not be stored.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

// Pipeline segments a page, extracts every case and, unless it is a dry run,
// persists them through the canonicalizer.
type Pipeline struct {
	log      *slog.Logger
	set      *extract.PatternSet
	sink     diag.Sink
	canon    *Canonicalizer
	recorder Recorder
}

// NewPipeline creates a Pipeline. A nil canonicalizer makes every run a dry
// run. sink receives all diagnostics of the run.
func NewPipeline(log *slog.Logger, set *extract.PatternSet, sink diag.Sink, canon *Canonicalizer) *Pipeline {
	if sink == nil {
		sink = diag.Discard
	}
	return &Pipeline{
		log:   log.With("component", "pipeline"),
		set:   set,
		sink:  sink,
		canon: canon,
	}
}

// WithRecorder attaches a per-case outcome recorder.
func (p *Pipeline) WithRecorder(r Recorder) *Pipeline {
	p.recorder = r
	return p
}

// DryRun reports whether runs skip persistence.
func (p *Pipeline) DryRun() bool { return p.canon == nil }

// Records extracts the case records of doc without persisting them.
func (p *Pipeline) Records(doc *html.Node, sink diag.Sink) iter.Seq[domain.CaseRecord] {
	if sink == nil {
		sink = p.sink
	}
	ext := extract.New(p.set, sink)
	seg := segment.New(ext, sink, p.log)
	return func(yield func(domain.CaseRecord) bool) {
		for entry := range seg.Entries(doc) {
			if !yield(ext.Case(entry.Text, entry.Posted)) {
				return
			}
		}
	}
}

// Run ingests doc. Per-case persistence failures are reported as diagnostics
// and counted; only alias sync failures and cancellation abort the run.
func (p *Pipeline) Run(ctx context.Context, doc *html.Node) (res Result, err error) {
	start := time.Now()
	runID := RunID(ctx)
	ctx = ctxutil.WithRunID(ctx, runID)
	log := p.log.With(slog.String("run_id", runID.String()))
	if env := ctxutil.EnvFromCtx(ctx); env != "" {
		log = log.With(slog.String("env", env))
	}

	counts := diag.NewCollector()
	sink := diag.Tee(p.sink, counts)

	res = Result{RunID: runID, PatternSet: p.set.ID, DryRun: p.DryRun()}
	defer func() {
		res.Diagnostics = countByKind(counts)
		res.Duration = time.Since(start)
	}()

	log.Info("ingest started", slog.String("pattern_set", p.set.ID), slog.Bool("dry_run", res.DryRun))

	if !res.DryRun {
		synced, err := p.canon.SyncAliases(ctx)
		if err != nil {
			return res, fmt.Errorf("sync aliases: %w", err)
		}
		res.AliasesSynced = synced
	}

	for rec := range p.Records(doc, sink) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Entries++

		if res.DryRun {
			p.record(OutcomeExtracted)
			continue
		}

		pc, inserted, err := p.canon.ResolveAndPersist(ctx, rec)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return res, err
		case err != nil:
			res.Failed++
			p.record(OutcomeFailed)
			log.Error("failed to persist case",
				caseNumberAttr(rec.CaseNumber),
				slog.String("error", err.Error()),
			)
			sink.Report(diag.Diagnostic{
				Kind:       diag.KindPersistFailure,
				Text:       rec.Text,
				Detail:     err.Error(),
				CaseNumber: rec.CaseNumber,
			})
		case !inserted:
			res.Duplicates++
			p.record(OutcomeDuplicate)
		default:
			res.Persisted++
			p.record(OutcomePersisted)
			log.Debug("case stored", slog.Int64("id", pc.ID), slog.Int("entry", res.Entries))
		}
	}

	log.Info("ingest completed",
		slog.Int("entries", res.Entries),
		slog.Int("persisted", res.Persisted),
		slog.Int("duplicates", res.Duplicates),
		slog.Int("failed", res.Failed),
		slog.Int("diagnostics", counts.Len()),
	)
	return res, nil
}

func (p *Pipeline) record(o Outcome) {
	if p.recorder != nil {
		p.recorder.RecordCase(string(o))
	}
}

func countByKind(c *diag.Collector) map[diag.Kind]int {
	out := make(map[diag.Kind]int)
	for _, d := range c.Items() {
		out[d.Kind]++
	}
	return out
}

func caseNumberAttr(n *int) slog.Attr {
	if n == nil {
		return slog.String("case_number", "unknown")
	}
	return slog.Int("case_number", *n)
}
