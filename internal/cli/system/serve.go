package system

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julianstephens/daybook/internal/api"
	"github.com/julianstephens/daybook/internal/cli"
	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/logger"
)

type ServeCmd struct {
	Addr        string        `help:"Listen address." default:":8080" env:"DAYBOOK_ADDR"`
	CORSOrigins []string      `name:"cors-origin" help:"Allowed CORS origins." env:"DAYBOOK_CORS_ORIGINS" sep:","`
	SingleUser  bool          `help:"Serve requests without an owner header as the --owner user." env:"DAYBOOK_SINGLE_USER"`
	Shutdown    time.Duration `help:"Graceful shutdown timeout." default:"5s"`
}

func (c *ServeCmd) Run(ctx *cli.Context) error {
	cfg := api.Config{AllowedOrigins: c.CORSOrigins}
	if c.SingleUser {
		cfg.DefaultOwner = ctx.Owner
	}
	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           api.NewRouter(ctx.Service(), cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", c.Addr, "owner_header", constants.OwnerHeader)
		ctx.Printf("Listening on %s\n", c.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Shutdown)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
