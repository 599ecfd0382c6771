package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
)

func newAnalyzeCommand(opts *globalOptions) *cobra.Command {
	var flags ledgerFlags
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Detect the layout and column mapping of an export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			budgetID, err := flags.budgetID()
			if err != nil {
				return err
			}
			name, data, err := readInput(args[0])
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), &flags, opts.logger)
			if err != nil {
				return err
			}
			defer s.close()

			result, err := s.service.Analyze(cmd.Context(), budgetID, name, data)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			printAnalysis(cmd.OutOrStdout(), result)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")

	return cmd
}

func printAnalysis(out io.Writer, a *importservice.AnalyzeResult) {
	format := a.Format
	switch {
	case a.Delimiter != "":
		format = fmt.Sprintf("%s (delimiter: %s)", a.Format, a.Delimiter)
	case a.Sheet != "":
		format = fmt.Sprintf("%s (sheet: %s)", a.Format, a.Sheet)
	}
	preset := "none"
	if a.Preset != nil {
		preset = a.Preset.DisplayName
	}

	fmt.Fprintf(out, "File:        %s\n", a.FileName)
	fmt.Fprintf(out, "Format:      %s\n", format)
	fmt.Fprintf(out, "Rows:        %d\n", a.RowCount)
	fmt.Fprintf(out, "Fingerprint: %s\n", a.Fingerprint)
	fmt.Fprintf(out, "Preset:      %s\n", preset)
	fmt.Fprintf(out, "Mapping:     %s\n", a.MappingSource)
	fmt.Fprintf(out, "Dialect:     %s, decimal %q, currency %s (confidence %.2f)\n\n",
		a.Dialect.DateOrder, a.Dialect.DecimalSeparator, orDash(a.Dialect.CurrencyHint), a.Dialect.Confidence)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "COLUMN\tFIELD")
	for _, m := range a.Mappings {
		fmt.Fprintf(tw, "%s\t%s\n", m.SourceHeader, m.Field)
	}
	tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
