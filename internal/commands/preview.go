package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
)

// detectionFlags override duplicate detection settings.
type detectionFlags struct {
	tolerance int
	threshold float64
}

func (f *detectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.tolerance, "tolerance", 0, "date tolerance in days for near-date duplicates (default 1)")
	cmd.Flags().Float64Var(&f.threshold, "threshold", 0, "minimum duplicate confidence (default 0.7)")
}

func newPreviewCommand(opts *globalOptions) *cobra.Command {
	var flags ledgerFlags
	var detect detectionFlags
	var existingPath, outPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Map an export and flag duplicates without writing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if existingPath != "" && flags.ledger != "" {
				return fmt.Errorf("--existing and --ledger are mutually exclusive")
			}
			budgetID, err := flags.budgetID()
			if err != nil {
				return err
			}
			accountID, err := flags.accountID()
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

			if existingPath != "" {
				records, err := loadExisting(existingPath)
				if err != nil {
					return err
				}
				s.memory.AddRecords(budgetID, records)
			}

			preview, err := s.service.Preview(cmd.Context(), importservice.PreviewRequest{
				BudgetID:            budgetID,
				AccountID:           accountID,
				FileName:            name,
				Data:                data,
				DateTolerance:       detect.tolerance,
				ConfidenceThreshold: detect.threshold,
			})
			if err != nil {
				return err
			}

			if outPath != "" {
				if err := writeReview(outPath, preview); err != nil {
					return err
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(preview)
			}
			printPreview(cmd.OutOrStdout(), preview)
			return nil
		},
	}

	flags.register(cmd)
	detect.register(cmd)
	cmd.Flags().StringVar(&existingPath, "existing", "", "CSV snapshot of existing records (date,amount,vendor[,description,account_id])")
	cmd.Flags().StringVar(&outPath, "out", "", "write the review as CSV to this path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the preview as JSON")

	return cmd
}

func printPreview(out io.Writer, p *importservice.PreviewResult) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ROW\tDATE\tVENDOR\tAMOUNT\tSTATUS\tCATEGORY")
	for _, it := range p.Items {
		category := "-"
		if it.Suggestion != nil {
			category = it.Suggestion.CategoryName
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			it.Transaction.SourceRowIndex,
			it.Transaction.Date,
			it.Transaction.Vendor,
			it.Transaction.Amount.StringFixed(2),
			itemStatus(it),
			category,
		)
	}
	tw.Flush()

	if len(p.Errors) > 0 {
		fmt.Fprintln(out, "\nRow errors:")
		for _, e := range p.Errors {
			fmt.Fprintf(out, "  row %d: %s\n", e.Row, e.Message)
		}
	}

	s := p.Summary
	fmt.Fprintf(out, "\n%d rows: %d mapped, %d errors, %d duplicates, %d repeated in file, %d selected\n",
		s.TotalRows, s.Mapped, s.Errors, s.Duplicates, s.InternalDuplicates, s.Selected)
	fmt.Fprintf(out, "Selected totals: in %s, out %s, net %s\n", s.Inflow, s.Outflow, s.Net)
}

func itemStatus(it importservice.ReviewItem) string {
	switch {
	case it.Duplicate.IsDuplicate:
		return fmt.Sprintf("duplicate (%.2f)", it.Duplicate.Confidence)
	case it.InternalDuplicate:
		return "repeated"
	case it.Transaction.IsStartingBalance:
		return "starting balance"
	}
	return "new"
}
