package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ebcovid/caseledger/internal/app"
)

func newIngestCommand(st *state) *cobra.Command {
	var (
		opts   app.IngestOptions
		report bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the case report page and store its cases",
		Long: `Fetches the case report page, extracts every case and stores it in the
database of --env. Without --env nothing is written: the page is only
extracted and summarized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkEnv(opts.Env, false); err != nil {
				return err
			}

			res, err := app.Ingest(cmd.Context(), st.cfg, st.logger, opts)
			if err != nil {
				return err
			}

			if res.HasFailures() {
				st.logger.Warn("some cases were not stored", slog.Int("failed", res.Failed))
			}
			if report {
				return writeReport(cmd.OutOrStdout(), res)
			}
			writeSummary(cmd.OutOrStdout(), res)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.Env, "env", "", "target environment: dev, test or prod (omit for a dry run)")
	f.StringVar(&opts.PatternSet, "patterns", "", "pattern set id (default from config)")
	f.StringVar(&opts.File, "file", "", "read the page from a saved HTML file")
	f.StringVar(&opts.ArchiveKey, "archive-key", "", "replay an archived page snapshot")
	f.BoolVar(&report, "report", false, "print a detailed YAML run report")
	cmd.MarkFlagsMutuallyExclusive("file", "archive-key")
	return cmd
}

func writeSummary(w io.Writer, res app.IngestReport) {
	mode := "env " + res.Env
	if res.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "run %s (%s, pattern set %s): %d entries, %d persisted, %d duplicates, %d failed\n",
		res.RunID, mode, res.PatternSet, res.Entries, res.Persisted, res.Duplicates, res.Failed)
}

type runReport struct {
	RunID         string         `yaml:"run_id"`
	Env           string         `yaml:"env,omitempty"`
	DryRun        bool           `yaml:"dry_run"`
	Source        string         `yaml:"source"`
	SnapshotKey   string         `yaml:"snapshot_key,omitempty"`
	PatternSet    string         `yaml:"pattern_set"`
	Entries       int            `yaml:"entries"`
	Persisted     int            `yaml:"persisted"`
	Duplicates    int            `yaml:"duplicates"`
	Failed        int            `yaml:"failed"`
	AliasesSynced int            `yaml:"aliases_synced"`
	Diagnostics   map[string]int `yaml:"diagnostics,omitempty"`
	Duration      string         `yaml:"duration"`
}

func writeReport(w io.Writer, res app.IngestReport) error {
	r := runReport{
		RunID:         res.RunID.String(),
		Env:           res.Env,
		DryRun:        res.DryRun,
		Source:        res.Source,
		SnapshotKey:   res.SnapshotKey,
		PatternSet:    res.PatternSet,
		Entries:       res.Entries,
		Persisted:     res.Persisted,
		Duplicates:    res.Duplicates,
		Failed:        res.Failed,
		AliasesSynced: res.AliasesSynced,
		Duration:      res.Duration.String(),
	}
	if len(res.Diagnostics) > 0 {
		r.Diagnostics = make(map[string]int, len(res.Diagnostics))
		for k, n := range res.Diagnostics {
			r.Diagnostics[k.String()] = n
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}
