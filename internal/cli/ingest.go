package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/domain"
	"jobintel-engine/internal/poll"
)

type IngestOptions struct {
	*RootOptions
	Source     string
	Keywords   string
	Location   string
	MaxResults int
}

type ingestSummary struct {
	RunID      int64    `json:"runId"`
	Source     string   `json:"source"`
	JobsFound  int      `json:"jobsFound"`
	New        int      `json:"new"`
	Updated    int      `json:"updated"`
	Duplicates int      `json:"duplicates"`
	Errors     []string `json:"errors"`
}

func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch and reconcile one batch now",
		Long: `Fetch postings from the scrape API and reconcile them into the catalog.

Example:
  engine ingest --source seek --keywords "plumber" --location Sydney
  engine ingest --keywords "roof tiler" --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", poll.SourceAll, "seek, indeed or all")
	cmd.Flags().StringVar(&opts.Keywords, "keywords", "", "search keywords, space separated (required)")
	cmd.Flags().StringVar(&opts.Location, "location", "", "location passed to the scrape API")
	cmd.Flags().IntVar(&opts.MaxResults, "max-results", poll.DefaultMaxResults, "maximum results per source")
	_ = cmd.MarkFlagRequired("keywords")

	return cmd
}

func runIngest(cmd *cobra.Command, opts *IngestOptions) error {
	keywords := strings.Fields(opts.Keywords)
	if len(keywords) == 0 {
		return NewExitError(ExitCommandError, "--keywords is required")
	}

	a, err := openApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.runner.RunOnce(cmd.Context(), poll.Request{
		Source:     opts.Source,
		Keywords:   keywords,
		Location:   opts.Location,
		MaxResults: opts.MaxResults,
	})
	if err != nil {
		if errors.Is(err, poll.ErrUnknownSource) {
			return WrapExitError(ExitCommandError, "ingest", err)
		}
		if errors.Is(err, domain.ErrFetch) {
			return WrapExitError(ExitFailure, fmt.Sprintf("ingest run %d failed", out.RunID), err)
		}
		return WrapExitError(ExitFailure, "ingest", err)
	}

	sum := ingestSummary{
		RunID:      out.RunID,
		Source:     out.Source,
		JobsFound:  out.JobsFound,
		New:        out.Result.NewCount,
		Updated:    out.Result.UpdatedCount,
		Duplicates: out.Result.DedupedCount,
		Errors:     out.Result.Errors,
	}
	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	return f.Success(sum, func(w io.Writer) {
		fmt.Fprintf(w, "run %d source=%s found=%d new=%d updated=%d duplicates=%d errors=%d\n",
			sum.RunID, sum.Source, sum.JobsFound, sum.New, sum.Updated, sum.Duplicates, len(sum.Errors))
		for _, e := range sum.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	})
}
