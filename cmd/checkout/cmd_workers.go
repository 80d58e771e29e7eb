package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/internal/bootstrap"
)

var queueWorkersFlag int

func bootApp(ctx context.Context) (*bootstrap.App, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	return bootstrap.New(ctx)
}

// checkout queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Start the order sync workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.InProcessWorkers() {
			// Nothing else can feed a memory queue; sweep here too.
			fmt.Println("QUEUE_DRIVER=memory: running the sweeper in this process.")
			var wg sync.WaitGroup
			startBackground(ctx, &wg, app, queueWorkersFlag)
			wg.Wait()
			return nil
		}

		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", queueWorkersFlag)
		app.Queue.Work(ctx, queueWorkersFlag)
		fmt.Println("Queue worker stopped.")
		return nil
	},
}

// checkout schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Start the stale order sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		if app.InProcessWorkers() {
			fmt.Println("QUEUE_DRIVER=memory: running sync workers in this process.")
			var wg sync.WaitGroup
			startBackground(ctx, &wg, app, queueWorkersFlag)
			wg.Wait()
			return nil
		}

		s := app.Scheduler()
		fmt.Println("Registered scheduled tasks:")
		for _, t := range s.List() {
			fmt.Println("  •", t)
		}
		fmt.Println("Scheduler started. Press Ctrl+C to stop.")
		s.Start(ctx)
		fmt.Println("Scheduler stopped.")
		return nil
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "Number of concurrent workers")
	scheduleRunCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 5, "In-process workers when QUEUE_DRIVER=memory")
}
