package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLicensesCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "licenses",
		Short: "List the licenses available to the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			c, err := a.newClient(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			licenses, err := c.GetLicenses(ctx)
			if err != nil {
				return fmt.Errorf("list licenses: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(a.out)
				enc.SetIndent("", "  ")
				return enc.Encode(licenses)
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LICENSE NUMBER\tNAME")
			for _, l := range licenses {
				fmt.Fprintf(tw, "%s\t%s\n", l.LicenseNumber, l.LicenseName)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print licenses as JSON")
	return cmd
}
