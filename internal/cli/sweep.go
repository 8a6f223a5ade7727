package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type SweepOptions struct {
	*RootOptions
	MaxAge time.Duration
}

func NewSweepCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SweepOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Deactivate postings not seen recently",
		Long: `Mark postings whose last check is older than --max-age as inactive.
Without --max-age the sweep.max_age config value is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.RootOptions)
			if err != nil {
				return err
			}
			defer a.Close()

			maxAge := opts.MaxAge
			if maxAge <= 0 {
				maxAge = a.cfg.Sweep.MaxAge
			}
			if maxAge <= 0 {
				return NewExitError(ExitCommandError, "sweep needs a positive --max-age")
			}

			before := time.Now().UTC().Add(-maxAge)
			n, err := a.db.DeactivateStale(cmd.Context(), before)
			if err != nil {
				return WrapExitError(ExitFailure, "sweep", err)
			}

			res := map[string]any{"deactivated": n, "before": before.Format(time.RFC3339)}
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
			return f.Success(res, func(w io.Writer) {
				fmt.Fprintf(w, "deactivated %d postings last checked before %s\n", n, before.Format(time.RFC3339))
			})
		},
	}

	cmd.Flags().DurationVar(&opts.MaxAge, "max-age", 0, "deactivate postings not checked within this long (e.g. 720h)")
	return cmd
}
