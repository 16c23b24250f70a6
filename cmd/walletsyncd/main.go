package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wildwes357/walletsyncd/internal/apiclient"
	"github.com/wildwes357/walletsyncd/internal/chainparams"
	"github.com/wildwes357/walletsyncd/internal/config"
	"github.com/wildwes357/walletsyncd/internal/eventbus"
	"github.com/wildwes357/walletsyncd/internal/peermgr"
	"github.com/wildwes357/walletsyncd/internal/wallet"
	"github.com/wildwes357/walletsyncd/internal/walletsync"
)

func main() {
	var (
		network = flag.String("network", "", "override NETWORK (mainnet/testnet3)")
		mode    = flag.String("mode", "", "override SYNC_MODE (api/p2p)")
	)
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to create logger: %v", err))
	}
	defer logger.Sync()

	cfg := config.Load()
	if *network != "" {
		cfg.Network = *network
	}
	if *mode != "" {
		cfg.Mode = config.Mode(*mode)
	}

	params := chainparams.TestNet3()
	if cfg.Network == "mainnet" {
		params = chainparams.MainNet()
	}

	reg := prometheus.NewRegistry()
	bus := eventbus.New(logger)
	defer bus.Close()

	srv := newServer(logger)

	mgr, err := buildManager(cfg, params, bus.Publish, reg, logger)
	if err != nil {
		logger.Fatal("failed to build sync manager", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := mgr.Connect(ctx); err != nil {
		logger.Error("initial connect failed", zap.Error(err))
	}
	if err := mgr.Scan(ctx); err != nil {
		logger.Error("initial scan request failed", zap.Error(err))
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	router.HandleFunc("/healthz", srv.handleHealthz).Methods(http.MethodGet)
	router.HandleFunc("/events", srv.handleRecentEvents).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// The tick loop, event consumer, and HTTP server run as a group so
	// any one of them failing cancels ctx and unwinds the rest, instead
	// of leaving orphaned goroutines behind a dead server.
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		runTickLoop(groupCtx, mgr, cfg.TickInterval, logger)
		return nil
	})
	group.Go(func() error {
		consumeEvents(groupCtx, bus, srv, logger)
		return nil
	})
	group.Go(func() error {
		logger.Info("walletsyncd listening", zap.String("addr", cfg.ListenAddr), zap.String("mode", string(cfg.Mode)), zap.String("network", cfg.Network))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case <-groupCtx.Done():
		logger.Warn("a background task exited unexpectedly, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	var shutdownErr error
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("http server shutdown: %w", err))
	}
	if err := mgr.Disconnect(shutdownCtx); err != nil {
		shutdownErr = multierr.Append(shutdownErr, fmt.Errorf("manager disconnect: %w", err))
	}
	if err := group.Wait(); err != nil {
		shutdownErr = multierr.Append(shutdownErr, err)
	}
	if shutdownErr != nil {
		logger.Error("shutdown completed with errors", zap.Error(shutdownErr))
	}
}

// buildManager wires a walletsync.Manager for the configured mode: an
// apiclient.Client against a remote indexer, or a peermgr.BtcdManager
// dialing fixed peer endpoints directly.
func buildManager(cfg config.Config, params *chainparams.Params, onEvent walletsync.EventCallback, reg prometheus.Registerer, logger *zap.Logger) (*walletsync.Manager, error) {
	wal := wallet.NewMemWallet(params.GapLimitExternal, params.GapLimitInternal)
	metrics := walletsync.NewMetrics(reg)

	switch cfg.Mode {
	case config.ModeP2P:
		pm := peermgr.NewBtcdManager(peermgr.Config{
			ChainParams: &params.Net,
			Endpoints:   cfg.PeerEndpoints,
			DialTimeout: cfg.DialTimeout,
			UserAgent:   cfg.PeerUserAgent,
		}, logger)
		return walletsync.NewPeerManager(walletsync.PeerManagerConfig{
			PeerManager: pm,
			Wallet:      wal,
			Params:      params,
			OnEvent:     onEvent,
			Metrics:     metrics,
			Logger:      logger,
		}), nil
	default:
		client := apiclient.NewClient(apiclient.Config{
			BaseURL:     cfg.IndexerBaseURL,
			APIKey:      cfg.IndexerAPIKey,
			HTTPTimeout: cfg.HTTPTimeout,
		}, logger, reg)
		return walletsync.NewAPIManager(walletsync.APIManagerConfig{
			Params:  params,
			Wallet:  wal,
			OnEvent: onEvent,
			Client:  client,
			Codec:   apiclient.TxCodec{},
			Metrics: metrics,
			Logger:  logger,
		}), nil
	}
}

func runTickLoop(ctx context.Context, mgr *walletsync.Manager, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mgr.TickTock(ctx)
		}
	}
}

// server exposes a small HTTP surface over the running Manager: a
// liveness probe and a rolling window of recent sync events, useful for
// operators without a dedicated event consumer of their own.
type server struct {
	logger *zap.Logger

	mu     sync.Mutex
	recent []walletsync.Event
}

func newServer(logger *zap.Logger) *server {
	return &server{logger: logger}
}

const recentEventWindow = 100

func consumeEvents(ctx context.Context, bus *eventbus.Bus, srv *server, logger *zap.Logger) {
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			srv.record(ev)
			logger.Debug("sync event", zap.Stringer("kind", ev.Kind))
		}
	}
}

func (s *server) record(ev walletsync.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recent = append(s.recent, ev)
	if len(s.recent) > recentEventWindow {
		s.recent = s.recent[len(s.recent)-recentEventWindow:]
	}
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type eventView struct {
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Percent   float64   `json:"percent,omitempty"`
	ErrorCode int       `json:"error_code,omitempty"`
	Height    uint32    `json:"height,omitempty"`
}

func (s *server) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	views := make([]eventView, 0, len(s.recent))
	for _, ev := range s.recent {
		views = append(views, eventView{
			Kind:      ev.Kind.String(),
			Timestamp: ev.Timestamp,
			Percent:   ev.Percent,
			ErrorCode: ev.ErrorCode,
			Height:    ev.Height,
		})
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}
