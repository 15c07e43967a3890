package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/pivo/internal/scheduler"
	"github.com/example/pivo/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the JSON API + completion sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := openApp(ctx, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			g, ctx := errgroup.WithContext(ctx)
			if a.cfg.SweepInterval > 0 {
				s := &scheduler.Sweeper{
					Engine:   a.engine,
					Interval: a.cfg.SweepInterval,
					Grace:    a.cfg.CompletionGrace,
					Log:      a.log.Named("sweeper"),
				}
				g.Go(func() error {
					if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
						return err
					}
					return nil
				})
			}

			ws := &web.Server{Engine: a.engine, Log: a.log.Named("http")}
			g.Go(func() error {
				err := web.Start(ctx, a.cfg.ListenAddr, ws.Routes(), a.log)
				// stop the sweeper when the listener fails
				cancel()
				return err
			})
			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
