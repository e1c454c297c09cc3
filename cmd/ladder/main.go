package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/caesar-terminal/ladder/internal/adapter"
	"github.com/caesar-terminal/ladder/internal/adapter/btse"
	"github.com/caesar-terminal/ladder/internal/config"
	"github.com/caesar-terminal/ladder/internal/engine"
	"github.com/caesar-terminal/ladder/internal/logging"
	"github.com/caesar-terminal/ladder/internal/metrics"
	"github.com/caesar-terminal/ladder/internal/sink"
	"github.com/caesar-terminal/ladder/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Log)
	log.Info().
		Str("env", cfg.Env).
		Str("symbol", cfg.Feed.Symbol).
		Dur("window", cfg.Engine.Window).
		Msg("ladder starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("ladder exited with error")
		os.Exit(1)
	}
	log.Info().Msg("ladder shut down")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	reg := metrics.Init(log)
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(reg))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("metrics server failed")
			}
		}()
	}

	bookWS := adapter.NewWSClient(wsConfig(cfg.Feed, cfg.Feed.BookURL, metrics.FeedBook), log)
	tradeWS := adapter.NewWSClient(wsConfig(cfg.Feed, cfg.Feed.TradeURL, metrics.FeedTrade), log)
	defer bookWS.Close()
	defer tradeWS.Close()

	// Feeds must register their subscribe hooks before the first dial.
	bookFeed := btse.NewBookFeed(bookWS, cfg.Feed.BookChannel(), log)
	tradeFeed := btse.NewTradeFeed(tradeWS, cfg.Feed.TradeChannel(), log)

	eng := engine.New(engine.Config{Window: cfg.Engine.Window}, log)

	var wg sync.WaitGroup
	if cfg.View.Enabled {
		printer := view.NewPrinter(os.Stdout, cfg.View.Clear)
		snaps := eng.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range snaps {
				if err := printer.Print(s); err != nil {
					log.Warn().Err(err).Msg("view: write failed")
				}
			}
		}()
	}

	if cfg.Redis.Enabled {
		rc := sink.NewGoRedis(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis: ping failed, writes will retry")
		}
		rw := sink.NewRedisWriter(rc, cfg.Redis.KeyPrefix, cfg.Feed.Symbol, eng.Subscribe(), log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			rw.Run(ctx)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		bookFeed.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		tradeFeed.Run(ctx)
	}()

	for _, ws := range []*adapter.WSClient{bookWS, tradeWS} {
		if err := connect(ctx, ws, cfg.Feed, log); err != nil && ctx.Err() == nil {
			shutdown(metricsSrv, log)
			return fmt.Errorf("connect: %w", err)
		}
	}

	// Blocks until ctx is cancelled; closes subscriber channels on return.
	eng.Run(ctx, bookFeed.Updates(), tradeFeed.Updates())

	bookWS.Close()
	tradeWS.Close()
	wg.Wait()

	shutdown(metricsSrv, log)
	return nil
}

func wsConfig(feed config.FeedConfig, url, name string) adapter.WSConfig {
	c := adapter.DefaultWSConfig(url, name)
	c.HeartbeatTimeout = feed.HeartbeatTimeout
	c.BackoffInitial = feed.BackoffInitial
	c.BackoffMax = feed.BackoffMax
	return c
}

// connect retries the initial dial with backoff. Once connected the client
// handles reconnects itself.
func connect(ctx context.Context, ws *adapter.WSClient, feed config.FeedConfig, log zerolog.Logger) error {
	backoff := feed.BackoffInitial
	for {
		err := ws.Connect(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, adapter.ErrClosed) || ctx.Err() != nil {
			return err
		}
		log.Warn().Err(err).Dur("backoff", backoff).Msg("initial connect failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > feed.BackoffMax {
			backoff = feed.BackoffMax
		}
	}
}

func shutdown(srv *http.Server, log zerolog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}
}
