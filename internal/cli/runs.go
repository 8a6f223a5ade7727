package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/domain"
)

type RunsOptions struct {
	*RootOptions
	Limit int
}

func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent ingest runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.tracker.Recent(cmd.Context(), opts.Limit)
			if err != nil {
				return WrapExitError(ExitFailure, "list runs", err)
			}
			if list == nil {
				list = []domain.IngestRun{}
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return f.Success(list, func(w io.Writer) { printRuns(w, list) })
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of runs to show")
	return cmd
}

func printRuns(w io.Writer, list []domain.IngestRun) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tKEYWORDS\tSTATUS\tSTARTED\tFOUND\tNEW\tUPDATED\tDEDUPED")
	for _, r := range list {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.Source, r.Keywords, r.Status, r.StartedAt.Format(time.RFC3339),
			r.JobsFound, r.JobsNew, r.JobsUpdated, r.JobsDeduped)
	}
	_ = tw.Flush()
}
