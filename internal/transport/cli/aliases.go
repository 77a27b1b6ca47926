package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ebcovid/caseledger/internal/app"
	"github.com/ebcovid/caseledger/internal/domain"
)

func newAliasesCommand(st *state) *cobra.Command {
	var (
		kind     string
		unmapped bool
		opts     app.IngestOptions
	)

	cmd := &cobra.Command{
		Use:   "aliases",
		Short: "Print the alias table or the names it does not cover",
		Long: `Prints every alias of the loaded alias table. With --unmapped, extracts the
page instead and prints the distinct raw names of --kind that no alias
covers, which is how the alias file is grown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kinds := domain.EntityKinds
			if kind != "" {
				k := domain.EntityKind(kind)
				if !k.IsValid() {
					return fmt.Errorf("invalid --kind %q (want facility, building or department)", kind)
				}
				kinds = []domain.EntityKind{k}
			}

			out := cmd.OutOrStdout()
			if unmapped {
				for _, k := range kinds {
					names, err := app.Unmapped(cmd.Context(), st.cfg, st.logger, k, opts)
					if err != nil {
						return err
					}
					for _, n := range names {
						fmt.Fprintf(out, "%s\t%s\n", k, n)
					}
				}
				return nil
			}

			table, err := app.Aliases(st.cfg)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tALIAS\tCANONICAL")
			for _, k := range kinds {
				for _, e := range table.Entries(k) {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Kind, e.Raw, e.Canonical)
				}
			}
			return tw.Flush()
		},
	}

	f := cmd.Flags()
	f.StringVar(&kind, "kind", "", "only this entity kind: facility, building or department")
	f.BoolVar(&unmapped, "unmapped", false, "list raw names of the page that no alias covers")
	f.StringVar(&opts.File, "file", "", "with --unmapped, read the page from a saved HTML file")
	f.StringVar(&opts.ArchiveKey, "archive-key", "", "with --unmapped, read an archived page snapshot")
	f.StringVar(&opts.PatternSet, "patterns", "", "with --unmapped, pattern set id")
	cmd.MarkFlagsMutuallyExclusive("file", "archive-key")
	return cmd
}
