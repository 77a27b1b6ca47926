package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ebcovid/caseledger/internal/app"
)

func newPatternsCommand(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "patterns",
		Short: "List the available extraction pattern sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := app.Patterns(st.cfg)
			if err != nil {
				return err
			}

			selected := st.cfg.Ingest.PatternSet
			if selected == "" {
				selected = reg.DefaultID()
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, id := range reg.IDs() {
				set, err := reg.Get(id)
				if err != nil {
					return err
				}
				mark := " "
				if id == selected {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s %s\t%s\n", mark, set.ID, set.Description)
			}
			return tw.Flush()
		},
	}
}
