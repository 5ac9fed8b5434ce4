package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mozjobs/harvester/internal/site"
)

// newSitesCmd creates the 'sites' subcommand listing the supported sites.
func newSitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sites",
		Short: "Lists the supported job-listing sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tBASE URL\tPAGINATION\tAI")
			for _, name := range site.Names() {
				descriptor, err := site.Lookup(name)
				if err != nil {
					return err
				}
				aiNote := "optional"
				if descriptor.AIRequired {
					aiNote = "required"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					descriptor.Name, descriptor.BaseURL, descriptor.Pagination, aiNote)
			}
			return w.Flush()
		},
	}
}
