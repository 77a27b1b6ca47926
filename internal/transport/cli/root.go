// Package cli implements the caseledger command line.
package cli

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ebcovid/caseledger/internal/app"
	"github.com/ebcovid/caseledger/internal/config"
)

// state is shared by all subcommands of one invocation.
type state struct {
	configPath string
	verbosity  int

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the caseledger command tree.
func NewRootCommand() *cobra.Command {
	st := &state{}

	root := &cobra.Command{
		Use:   "caseledger",
		Short: "Ingest the workplace case report page into a case ledger",
		Long: `caseledger reads the public case report summary page, extracts one record
per reported case, canonicalizes facility, building and department names
and stores the cases in the database of the chosen environment.`,
		Version:       app.BuildVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return st.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&st.configPath, "config", "", "path to config YAML (default $CONFIG_PATH or ./config.yaml)")
	root.PersistentFlags().IntVarP(&st.verbosity, "verbosity", "v", 0, "log level: 10 debug, 20 info, 30 warning, 40 error, 50 critical")

	root.AddCommand(
		newIngestCommand(st),
		newMigrateCommand(st),
		newAliasesCommand(st),
		newPatternsCommand(st),
	)
	return root
}

func (st *state) init(cmd *cobra.Command) error {
	cfg, err := config.Load(st.configPath)
	if err != nil {
		return err
	}
	if st.verbosity != 0 {
		if st.verbosity%10 != 0 || st.verbosity < 10 || st.verbosity > 50 {
			return fmt.Errorf("invalid verbosity %d (want 10, 20, 30, 40 or 50)", st.verbosity)
		}
		cfg.Log.Level = strconv.Itoa(st.verbosity)
	}

	st.cfg = cfg
	st.logger = app.NewLoggerTo(cmd.ErrOrStderr(), cfg.Log)
	slog.SetDefault(st.logger)
	return nil
}

// checkEnv rejects environments outside dev, test and prod.
func checkEnv(env string, required bool) error {
	if env == "" {
		if required {
			return fmt.Errorf("--env is required (one of %v)", config.Environments)
		}
		return nil
	}
	if !config.IsEnvironment(env) {
		return fmt.Errorf("invalid --env %q (want one of %v)", env, config.Environments)
	}
	return nil
}
