package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lukman83/pricewatch/internal/monitor"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Check prices on a schedule and serve the HTTP API",
	Long: `Runs a price check immediately and then every --interval, while serving
/api/prices, /api/history, /api/scrape, /metrics, /healthz and /mcp.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().Duration("interval", 0, "Time between checks (default from $PRICEWATCH_INTERVAL or 30m)")
	runCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	runCmd.Flags().Bool("no-server", false, "Only run the scheduler")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if v, _ := cmd.Flags().GetDuration("interval"); v > 0 {
		cfg.Interval = v
	}
	port := cfg.HTTPPort
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}
	noServer, _ := cmd.Flags().GetBool("no-server")

	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched := monitor.NewScheduler(a.monitor, cfg.Interval)
	sched.OnResult = func(res *monitor.CycleResult) {
		if !res.OK() {
			for _, e := range res.Errors {
				fmt.Fprintf(cmd.ErrOrStderr(), "store error: %v\n", e)
			}
		}
	}
	a.service.Interval = cfg.Interval
	a.service.Next = sched.Next

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(ctx)
		return nil
	})
	if !noServer {
		g.Go(func() error {
			return listen(ctx, ":"+port, a.routes(cfg.APIKey))
		})
	}
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
