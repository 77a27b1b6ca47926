package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ebcovid/caseledger/internal/adapter/archive"
	"github.com/ebcovid/caseledger/internal/adapter/source"
	"github.com/ebcovid/caseledger/internal/alias"
	"github.com/ebcovid/caseledger/internal/app/ingest"
	"github.com/ebcovid/caseledger/internal/config"
	"github.com/ebcovid/caseledger/internal/diag"
	"github.com/ebcovid/caseledger/internal/domain"
	"github.com/ebcovid/caseledger/internal/extract"
	"github.com/ebcovid/caseledger/internal/metrics"
	"github.com/ebcovid/caseledger/internal/segment"
	"github.com/ebcovid/caseledger/pkg/ctxutil"
)

// Source produces the case report page.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// IngestOptions selects what one ingest run reads and where it writes.
type IngestOptions struct {
	// Env is the target environment. Empty means dry run.
	Env string
	// PatternSet overrides ingest.pattern_set.
	PatternSet string
	// File reads the page from disk instead of the configured URL.
	File string
	// ArchiveKey replays an archived snapshot instead of fetching.
	ArchiveKey string
}

// IngestReport is the outcome of Ingest.
type IngestReport struct {
	ingest.Result

	Env         string
	Source      string
	SnapshotKey string
}

// Ingest fetches the page, extracts every case and, unless opts.Env is
// empty, persists them into that environment's database.
func Ingest(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts IngestOptions) (IngestReport, error) {
	if opts.Env != "" && !config.IsEnvironment(opts.Env) {
		return IngestReport{}, fmt.Errorf("unknown environment %q (want one of %v)", opts.Env, config.Environments)
	}

	set, err := loadPatternSet(cfg.Ingest, opts.PatternSet)
	if err != nil {
		return IngestReport{}, err
	}

	aliases, err := alias.Load(cfg.Ingest.AliasesFile)
	if err != nil {
		return IngestReport{}, err
	}

	dedupe, err := ingest.ParseDedupe(cfg.Ingest.CaseDedupe)
	if err != nil {
		return IngestReport{}, err
	}

	arc, err := OpenArchive(ctx, cfg.Archive)
	if err != nil {
		return IngestReport{}, err
	}

	src, err := selectSource(cfg, logger, arc, opts)
	if err != nil {
		return IngestReport{}, err
	}

	runID := uuid.New()
	ctx = ctxutil.WithRunID(ctx, runID)
	if opts.Env != "" {
		ctx = ctxutil.WithEnv(ctx, opts.Env)
	}
	log := logger.With(slog.String("run_id", runID.String()))

	report := IngestReport{Env: opts.Env, Source: src.Name()}

	var recorder *metrics.Recorder
	if cfg.Metrics.Textfile != "" {
		recorder = metrics.New(cfg.Metrics.Job)
		defer func() {
			if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
				log.Warn("failed to write metrics", slog.String("error", err.Error()))
			}
		}()
	}

	res, err := run(ctx, log, cfg, src, arc, set, aliases, dedupe, recorder, opts, &report)
	report.Result = res
	if recorder != nil {
		recorder.ObserveRun(time.Now(), res.Duration, res.AliasesSynced, err)
	}
	return report, err
}

func run(
	ctx context.Context,
	log *slog.Logger,
	cfg *config.Config,
	src Source,
	arc Archive,
	set *extract.PatternSet,
	aliases *alias.Table,
	dedupe ingest.Dedupe,
	recorder *metrics.Recorder,
	opts IngestOptions,
	report *IngestReport,
) (ingest.Result, error) {
	log.Info("fetching page",
		slog.String("version", BuildVersion()),
		slog.String("source", src.Name()),
		slog.String("pattern_set", set.ID),
		slog.Bool("dry_run", opts.Env == ""))

	body, err := src.Fetch(ctx)
	if err != nil {
		return ingest.Result{}, err
	}

	// Snapshots are archived before parsing so a page that breaks the
	// parser can still be replayed later.
	if arc != nil && opts.ArchiveKey == "" {
		runID, _ := ctxutil.RunIDFromCtx(ctx)
		key := archive.Key(time.Now(), runID)
		if err := arc.Put(ctx, key, body); err != nil {
			log.Warn("failed to archive snapshot", slog.String("key", key), slog.String("error", err.Error()))
		} else {
			report.SnapshotKey = key
			log.Info("snapshot archived", slog.String("archive", arc.Name()), slog.String("key", key))
		}
	}

	doc, err := segment.Parse(bytes.NewReader(body))
	if err != nil {
		return ingest.Result{}, err
	}

	sinks := []diag.Sink{diag.Logger(log)}
	if recorder != nil {
		sinks = append(sinks, recorder)
	}

	var canon *ingest.Canonicalizer
	if opts.Env != "" {
		db, err := cfg.Database(opts.Env)
		if err != nil {
			return ingest.Result{}, err
		}
		if err := migrateUp(ctx, db, log); err != nil {
			return ingest.Result{}, err
		}
		store, closeStore, err := OpenStore(ctx, db, log)
		if err != nil {
			return ingest.Result{}, err
		}
		defer closeStore()
		canon = ingest.NewCanonicalizer(log, store, aliases, dedupe, set.ID)
	}

	p := ingest.NewPipeline(log, set, diag.Tee(sinks...), canon)
	if recorder != nil {
		p.WithRecorder(recorder)
	}
	return p.Run(ctx, doc)
}

func selectSource(cfg *config.Config, logger *slog.Logger, arc Archive, opts IngestOptions) (Source, error) {
	switch {
	case opts.ArchiveKey != "" && opts.File != "":
		return nil, errors.New("--file and --archive-key are mutually exclusive")
	case opts.ArchiveKey != "":
		if arc == nil {
			return nil, errors.New("--archive-key needs archive.driver fs or s3")
		}
		return source.NewArchived(arc, opts.ArchiveKey), nil
	case opts.File != "":
		return source.NewFile(opts.File), nil
	}
	return source.NewHTTP(cfg.Source, logger), nil
}

// loadPatternSet resolves the pattern set to run with: override, then
// config, then the registry default.
func loadPatternSet(cfg config.IngestConfig, override string) (*extract.PatternSet, error) {
	reg, err := extract.LoadRegistry(cfg.PatternsFile)
	if err != nil {
		return nil, err
	}
	id := override
	if id == "" {
		id = cfg.PatternSet
	}
	return reg.Get(id)
}

// Patterns returns the pattern set registry, including sets from
// ingest.patterns_file.
func Patterns(cfg *config.Config) (*extract.Registry, error) {
	return extract.LoadRegistry(cfg.Ingest.PatternsFile)
}

// Aliases returns the alias table named by ingest.aliases_file.
func Aliases(cfg *config.Config) (*alias.Table, error) {
	return alias.Load(cfg.Ingest.AliasesFile)
}

// Unmapped extracts the page of opts and returns the distinct raw names of
// kind that the alias table does not cover.
func Unmapped(ctx context.Context, cfg *config.Config, logger *slog.Logger, kind domain.EntityKind, opts IngestOptions) ([]string, error) {
	if !kind.IsValid() {
		return nil, domain.NewValidationError("kind", "unknown entity kind "+kind.String())
	}

	set, err := loadPatternSet(cfg.Ingest, opts.PatternSet)
	if err != nil {
		return nil, err
	}
	aliases, err := alias.Load(cfg.Ingest.AliasesFile)
	if err != nil {
		return nil, err
	}
	arc, err := OpenArchive(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}
	src, err := selectSource(cfg, logger, arc, opts)
	if err != nil {
		return nil, err
	}

	body, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := segment.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var names []string
	p := ingest.NewPipeline(logger, set, diag.Discard, nil)
	for rec := range p.Records(doc, diag.Discard) {
		if raw := rec.RawName(kind); raw != nil {
			names = append(names, *raw)
		}
	}
	return aliases.Unmapped(kind, names), nil
}
