package cli

import (
	"github.com/spf13/cobra"

	"github.com/ebcovid/caseledger/internal/app"
)

func newMigrateCommand(st *state) *cobra.Command {
	var env string

	cmd := &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply or inspect database migrations",
		Long:      "Runs the embedded schema migrations against the database of --env. The default command is up.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{app.MigrateUp, app.MigrateDown, app.MigrateStatus},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkEnv(env, true); err != nil {
				return err
			}
			db, err := st.cfg.Database(env)
			if err != nil {
				return err
			}

			command := app.MigrateUp
			if len(args) == 1 {
				command = args[0]
			}
			return app.Migrate(cmd.Context(), db, command, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&env, "env", "", "target environment: dev, test or prod")
	return cmd
}
