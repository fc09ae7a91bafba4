package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pdf-audio/internal/voices"
)

// voiceRow is the structured output of one listed voice.
type voiceRow struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Locale  string `json:"locale" yaml:"locale"`
	Gender  string `json:"gender" yaml:"gender"`
	Default bool   `json:"default,omitempty" yaml:"default,omitempty"`
}

func (c *cli) newVoicesCommand() *cobra.Command {
	var (
		format   string
		language string
	)

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List available voices for the target language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			if language == "" {
				language = c.settings.TargetLanguage
			}

			catalog, err := c.client.FetchVoices(cmd.Context())
			if err != nil {
				return err
			}
			filtered := voices.FilterAndLabel(catalog, language)
			defaultID := voices.DefaultVoice(filtered, c.settings.PreferredVoice)

			rows := make([]voiceRow, 0, len(filtered))
			for _, v := range filtered {
				rows = append(rows, voiceRow{
					ID:      v.ID(),
					Label:   v.DisplayLabel,
					Locale:  v.Locale,
					Gender:  string(v.Gender),
					Default: v.ID() == defaultID,
				})
			}

			out := cmd.OutOrStdout()
			if format != formatTable {
				return writeStructured(out, format, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintf(out, "No voices available for language %q.\n", language)
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLABEL\tDEFAULT")
			for _, row := range rows {
				mark := ""
				if row.Default {
					mark = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", row.ID, row.Label, mark)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatTable, "output format: table, json or yaml")
	cmd.Flags().StringVar(&language, "language", "", "language subtag to filter by (default from settings)")
	return cmd
}
