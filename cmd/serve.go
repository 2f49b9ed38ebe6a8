package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v3"
	"github.com/vikify/resolver/internal/server"
	"github.com/vikify/resolver/internal/shared"
)

const defaultServeAddr = "127.0.0.1:9464"

// Serve keeps a pipeline running, exposing /metrics, /healthz and /status until interrupted.
//
// With --sync-interval the sync worker is enqueued on a ticker; KEEP drops ticks while a batch is pending.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, reg, err := r.openWithMetrics()
	if err != nil {
		return err
	}
	defer s.Close()

	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	logger := shared.WithLogger(r.logger, "component", "server")
	router := server.NewRouter(reg, func(ctx context.Context) (any, error) {
		return s.Status(ctx)
	}, server.Recover(r.reporter), server.Logging(logger))

	if interval := cmd.Duration("sync-interval"); interval > 0 {
		s.EnqueueSync()
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.EnqueueSync()
				}
			}
		}()
	}

	return server.New(cmd.String("addr"), router, logger).Serve(ctx)
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the pipeline with a metrics and health endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address", Value: defaultServeAddr},
			&cli.DurationFlag{Name: "sync-interval", Usage: "Schedule a sync batch this often (0 disables)"},
		},
		Action: r.Serve,
	}
}
