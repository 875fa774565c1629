package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/venue-harvester/internal/app"
	"github.com/JakeFAU/venue-harvester/internal/config"
	"github.com/JakeFAU/venue-harvester/internal/harvest"
)

type runFlags struct {
	from        int
	to          int
	concurrency int
	newestFirst bool
	listen      string
}

// newRunCmd creates the 'run' subcommand.
func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvests every venue-year of the catalog",
		Long: `Resolves, fetches and extracts every venue-year in the configured range
and writes the resulting datasets. Individual target failures are reported in
the summary; the command fails only when setup fails, the run is interrupted,
or nothing was produced.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := resolveEnv(cmd.Context())
			if err != nil {
				return err
			}
			cfg, err := flags.apply(cmd, e.cfg)
			if err != nil {
				return err
			}
			return runHarvest(cmd.Context(), cfg, e.logger, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&flags.from, "from", 0, "first year (overrides harvest.from_year)")
	cmd.Flags().IntVar(&flags.to, "to", 0, "last year (overrides harvest.to_year)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "number of workers (overrides harvest.concurrency)")
	cmd.Flags().BoolVar(&flags.newestFirst, "newest-first", false, "visit years in descending order")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "ops server address (overrides metrics.listen_addr)")
	return cmd
}

// apply copies explicitly set flags over cfg and revalidates.
func (f runFlags) apply(cmd *cobra.Command, cfg config.Config) (config.Config, error) {
	changed := cmd.Flags().Changed
	if changed("from") {
		cfg.Harvest.FromYear = f.from
	}
	if changed("to") {
		cfg.Harvest.ToYear = f.to
	}
	if changed("concurrency") {
		cfg.Harvest.Concurrency = f.concurrency
	}
	if changed("newest-first") {
		cfg.Harvest.NewestFirst = f.newestFirst
	}
	if changed("listen") {
		cfg.Metrics.ListenAddr = f.listen
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func runHarvest(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) error {
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize harvester: %w", err)
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("shutdown incomplete", zap.Error(cerr))
		}
	}()

	summary, runErr := a.Run(ctx)
	printSummary(out, summary)
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return errors.New("harvest interrupted")
		}
		return runErr
	}
	return nil
}

func printSummary(w io.Writer, s harvest.Summary) {
	fmt.Fprintf(w, "run %s: %d targets, %d attempted, %d produced, %d empty, %d failed, %d skipped, %d canceled, %d records\n",
		s.RunID, s.Total, s.Attempted, s.Produced, s.Empty, s.Failed, s.Skipped, s.Canceled, s.Records)
	for _, r := range s.Results {
		if r.Status != harvest.StatusFailed {
			continue
		}
		fmt.Fprintf(w, "  failed %s: %s\n", r.Target, r.Note)
	}
}
