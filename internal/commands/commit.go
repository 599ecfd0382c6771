package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	importservice "github.com/FACorreiaa/budget-importer/internal/domain/import/service"
)

func newCommitCommand(opts *globalOptions) *cobra.Command {
	var flags ledgerFlags
	var detect detectionFlags
	var selectOpts importservice.SelectOptions

	cmd := &cobra.Command{
		Use:   "commit FILE",
		Short: "Write the new transactions of an export into a ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			items, skipped := preview.Selected(selectOpts)
			target := defaultAccountID(budgetID)
			if accountID != nil {
				target = *accountID
			}

			result, err := s.service.Commit(cmd.Context(), importservice.CommitRequest{
				BudgetID:    budgetID,
				AccountID:   target,
				FileName:    name,
				Items:       items,
				RowsSkipped: skipped,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d rows (%d skipped) into account %s, job %s\n",
				result.RowsImported, result.RowsTotal, result.RowsSkipped, target, result.JobID)
			return nil
		},
	}

	flags.register(cmd)
	detect.register(cmd)
	_ = cmd.MarkFlagRequired("ledger")
	_ = cmd.MarkFlagRequired("budget")
	cmd.Flags().BoolVar(&selectOpts.IncludeDuplicates, "include-duplicates", false, "also import rows flagged as duplicates of stored records")
	cmd.Flags().BoolVar(&selectOpts.AcceptSuggestions, "accept-suggestions", false, "assign suggested categories that resolve to a budget category")

	return cmd
}
