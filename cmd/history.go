package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/yds/infra/store"
)

var (
	historyLimit  int
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "List stored runs or print the schedule of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  history,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list, 0 for all")
	historyCmd.Flags().StringVar(&historyFormat, "format", "csv", "output format of a single run: json, csv or html")
	rootCmd.AddCommand(historyCmd)
}

func history(cmd *cobra.Command, args []string) error {
	if !cfg.Store.Enabled() {
		return fmt.Errorf("history requires store.path in the configuration")
	}
	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if len(args) == 1 {
		write, err := writerFor(historyFormat)
		if err != nil {
			return err
		}
		execs, err := st.Executions(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return write(out, execs)
	}

	list, err := st.Runs(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tCREATED\tSOURCE\tTASKS\tROUNDS\tPEAK")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%g\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Source, r.Tasks, r.Rounds, r.PeakFrequency)
	}
	return tw.Flush()
}
