package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cinemate/cinemate-web/internal/api"
	"github.com/cinemate/cinemate-web/internal/config"
	"github.com/cinemate/cinemate-web/internal/logging"
	"github.com/cinemate/cinemate-web/internal/metrics"
	"github.com/cinemate/cinemate-web/internal/ratings"
	"github.com/cinemate/cinemate-web/internal/recommend"
	"github.com/cinemate/cinemate-web/internal/search"
	"github.com/cinemate/cinemate-web/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("config error")
	}
	logging.Init(cfg.Logging)
	metrics.Init()

	client, err := api.New(cfg.Upstream.URL, time.Duration(cfg.Upstream.TimeoutSecs)*time.Second)
	if err != nil {
		logging.Fatal().Err(err).Msg("init api client")
	}

	ratingStore := ratings.NewStore(client, time.Duration(cfg.Ratings.FeedbackTTLSecs)*time.Second)
	searchCtrl := search.NewController(client, time.Duration(cfg.Search.DebounceMillis)*time.Millisecond)
	recView := recommend.NewView(client)

	server, err := web.New(cfg, client, ratingStore, searchCtrl, recView)
	if err != nil {
		logging.Fatal().Err(err).Msg("init web server")
	}

	logging.Info().
		Str("addr", cfg.Server.Host+":"+cfg.Server.Port).
		Str("upstream", cfg.Upstream.URL).
		Msg("starting web client")

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error().Err(err).Msg("graceful shutdown error")
	}
}
