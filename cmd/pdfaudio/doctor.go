package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pdf-audio/internal/diagnostics"
)

func (c *cli) newDoctorCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check backend reachability and local configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}

			report := diagnostics.NewChecker(c.client).Run(cmd.Context(), c.settings)
			out := cmd.OutOrStdout()

			if format != formatTable {
				if err := writeStructured(out, format, report); err != nil {
					return err
				}
			} else {
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CHECK\tSTATUS\tMESSAGE")
				for _, item := range report.Items {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", item.Name, item.Status, item.Message)
					if item.Hint != "" {
						fmt.Fprintf(tw, "\t\t%s\n", item.Hint)
					}
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if failures := report.Failures(); len(failures) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failures))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	return cmd
}
