package cmd

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/venue-harvester/internal/crawler"
)

// newVenuesCmd creates the 'venues' subcommand.
func newVenuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "venues",
		Short: "Lists the venues of the configured catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cat, err := e.cfg.Catalog.Build()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tFAMILY\tPARITY\tACTIVE FROM")
			for _, v := range cat.Venues() {
				parity := string(v.Parity)
				if parity == "" {
					parity = "any"
				}
				active := "-"
				if v.ActiveFrom > 0 {
					active = strconv.Itoa(v.ActiveFrom)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", v.ID, v.DisplayName, v.Family, parity, active)
			}
			return tw.Flush()
		},
	}
}

// newResolveCmd creates the 'resolve' subcommand.
func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <venue> <year>",
		Short: "Prints the candidate listing addresses of one venue-year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			year, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("year %q is not a number", args[1])
			}
			cat, err := e.cfg.Catalog.Build()
			if err != nil {
				return err
			}
			venue, ok := cat.Lookup(args[0])
			if !ok {
				return fmt.Errorf("venue %q is not in the catalog", args[0])
			}
			if reason, skip := venue.Excludes(year); skip {
				fmt.Fprintf(cmd.OutOrStdout(), "# skipped: %s\n", reason)
				return nil
			}
			addrs, err := crawler.NewResolver(e.cfg.Fetch.BaseURL).Resolve(venue, year)
			if err != nil {
				return err
			}
			for _, a := range addrs {
				fmt.Fprintln(cmd.OutOrStdout(), a.URL)
			}
			return nil
		},
	}
}
