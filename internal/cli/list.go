package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list [labels|@tags|files.yaml...]",
		Short: "List the scenarios a run would select",
		RunE: func(cmd *cobra.Command, args []string) error {
			selection, files := splitArgs(args)
			catalog, fileLabels, err := a.buildCatalog(files)
			if err != nil {
				return err
			}
			selected, err := catalog.Select(append(selection, fileLabels...))
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LABEL\tTAGS\tCONFLICTS\tTITLE")
			for _, sc := range selected {
				conflicts := strings.Join(sc.ConflictsWith, ",")
				if conflicts == "" {
					conflicts = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", sc.Label, strings.Join(sc.Tags, ","), conflicts, sc.Title)
			}
			return tw.Flush()
		},
	}
}
