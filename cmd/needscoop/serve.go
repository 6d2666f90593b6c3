package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	osignal "os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/needscoop/needscoop/internal/profile"
	"github.com/needscoop/needscoop/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API and RSS feed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p, err := initProfile()
			if err != nil {
				return err
			}
			st, err := newStore(ctx, p)
			if err != nil {
				return err
			}

			s, err := server.NewServer(ctx, p, st)
			if err != nil {
				_ = st.Close()
				return errors.Wrap(err, "failed to create server")
			}

			c := make(chan os.Signal, 1)
			osignal.Notify(c, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-c
				s.Shutdown(ctx)
				cancel()
			}()

			printGreetings(p)
			if err := s.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("needscoop v%s, mode %s, driver %s\n", p.Version, p.Mode, p.Driver)
	fmt.Printf("listening on %s:%d\n", p.Addr, p.Port)
}
