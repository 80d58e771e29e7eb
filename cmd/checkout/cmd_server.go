package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/checkout/app/routes"
	"github.com/shashiranjanraj/checkout/config"
	"github.com/shashiranjanraj/checkout/internal/bootstrap"
	"github.com/shashiranjanraj/checkout/internal/kernel"
	"github.com/shashiranjanraj/checkout/internal/server"
	"github.com/shashiranjanraj/checkout/pkg/logger"
)

var serveWorkersFlag int

// checkout serve
var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run", "start"},
	Short:   "Start the HTTP API and gRPC health server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		app, err := bootstrap.New(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.Limiter.Sweep(ctx)
		}()

		// The memory queue lives in this process, so its workers and the
		// sweeper feeding it must too.
		if app.InProcessWorkers() {
			startBackground(ctx, &wg, app, serveWorkersFlag)
		}

		err = server.Run(ctx, server.FromConfig(), app.Kernel.Handler(), app.Stores.Ping)
		stop()
		wg.Wait()
		return err
	},
}

// checkout route:list
var routeListCmd = &cobra.Command{
	Use:   "route:list",
	Short: "List all named routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		k := kernel.NewHTTPKernel(routes.API{}, nil)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "METHOD\tPATH\tNAME")
		fmt.Fprintln(w, "------\t----\t----")
		for _, ri := range k.Routes() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", ri.Method, ri.Path, ri.Name)
		}
		return w.Flush()
	},
}

func startBackground(ctx context.Context, wg *sync.WaitGroup, app *bootstrap.App, workers int) {
	if workers < 1 {
		workers = 2
	}
	logger.Info("running sync workers in-process", "workers", workers)

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.Queue.Work(ctx, workers)
	}()
	go func() {
		defer wg.Done()
		app.Scheduler().Start(ctx)
	}()
}

func init() {
	serveCmd.Flags().IntVarP(&serveWorkersFlag, "workers", "w", 2, "In-process sync workers when QUEUE_DRIVER=memory")
}
