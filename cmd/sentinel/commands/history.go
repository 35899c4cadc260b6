package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyMachine string
	historyLimit   int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past diagnosis results, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		limit := historyLimit
		if limit <= 0 {
			limit = cfg.Diagnosis.ResultLimit
		}

		results, err := st.Results(cmd.Context(), historyMachine, limit)
		if err != nil {
			return err
		}

		if jsonOutput() {
			return printJSON(results)
		}
		if len(results) == 0 {
			fmt.Printf("No diagnoses recorded for %s\n", historyMachine)
			return nil
		}

		tw := newTable()
		fmt.Fprintln(tw, "COMPLETED\tSCORE\tSTATUS\tLABEL\tCONF\tFRAMES")
		for _, r := range results {
			fmt.Fprintf(tw, "%s\t%.1f\t%s\t%s\t%.2f\t%d\n",
				r.CompletedAt.Format("2006-01-02 15:04:05"),
				r.Score, r.Status, r.Label, r.Confidence, r.Frames)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyMachine, "machine", "", "machine whose history to show (required)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "maximum results to show (default from config)")
	historyCmd.MarkFlagRequired("machine")

	rootCmd.AddCommand(historyCmd)
}
