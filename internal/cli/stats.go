package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jobintel-engine/internal/domain"
)

type StatsOptions struct {
	*RootOptions
	Since string
}

func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarise the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var since *time.Time
			if s := strings.TrimSpace(opts.Since); s != "" {
				t, err := domain.ParseFlexTime(s)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --since", err)
				}
				since = &t
			}

			a, err := openApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			st, err := a.catalog.Stats(cmd.Context(), since)
			if err != nil {
				return WrapExitError(ExitFailure, "stats", err)
			}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return f.Success(st, func(w io.Writer) { printStats(w, st) })
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "restrict breakdowns to postings scraped since (RFC3339 or date)")
	return cmd
}

func printStats(w io.Writer, st domain.Stats) {
	fmt.Fprintf(w, "total=%d active=%d added_today=%d\n", st.TotalJobs, st.ActiveJobs, st.JobsAddedToday)
	printCounts(w, "by trade", st.ByTrade)
	printCounts(w, "by state", st.ByState)
}

func printCounts(w io.Writer, title string, m map[string]int) {
	fmt.Fprintf(w, "%s:\n", title)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if m[keys[i]] != m[keys[j]] {
			return m[keys[i]] > m[keys[j]]
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		fmt.Fprintf(w, "  %-16s %d\n", k, m[k])
	}
}
