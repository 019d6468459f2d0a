package commands

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/icon-project/xcall-core/internal/config"
	"github.com/icon-project/xcall-core/internal/connection/centralized"
	"github.com/icon-project/xcall-core/internal/connection/cluster"
	"github.com/icon-project/xcall-core/internal/dapp/mockdapp"
	"github.com/icon-project/xcall-core/internal/logging"
	"github.com/icon-project/xcall-core/internal/metrics"
	"github.com/icon-project/xcall-core/internal/store"
	"github.com/icon-project/xcall-core/internal/store/badgerstore"
	"github.com/icon-project/xcall-core/internal/store/memstore"
	"github.com/icon-project/xcall-core/internal/xcall"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the xcalld dispatcher and its connections",
	Long: `Start loads configuration from the environment (.env and
.env.local are loaded first if present), opens the configured
persistence backend, wires the Centralized and/or Cluster connections
that are configured, and serves the dispatcher until interrupted.`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	if cfg.Admin == "" {
		return fmt.Errorf("ADMIN must be set")
	}

	st, closeStore, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	dispatcherMetrics, metricsHandler := metrics.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := xcall.NewRecordingSink() // replaced by a real sink once a host event bus is wired
	d := xcall.New(st,
		xcall.WithMetrics(dispatcherMetrics),
		xcall.WithLogger(logger),
		xcall.WithEventSink(sink),
	)
	if err := d.Initialize(ctx, cfg.NetworkID, cfg.Admin); err != nil {
		logger.Warn("initialize skipped", "error", err)
	}

	d.RegisterDApp("demo", mockdapp.New())

	if cfg.CentralizedRelay != "" {
		receipts := memstore.NewReceiptStore()
		conn := centralized.New(cfg.Admin, cfg.CentralizedRelay, receipts, d)
		d.RegisterConnection("centralized", conn)
		logger.Info("centralized connection registered", "relayer", cfg.CentralizedRelay)
	}

	var clusterServer *cluster.Server
	if len(cfg.ClusterValidatorsHex) > 0 {
		receipts := memstore.NewReceiptStore()
		scheme := cluster.SchemeSecp256k1
		if cfg.ClusterScheme == string(cluster.SchemeEd25519) {
			scheme = cluster.SchemeEd25519
		}
		conn := cluster.New(cfg.Admin, cfg.ClusterThreshold, scheme, receipts, d)
		for _, hexKey := range cfg.ClusterValidatorsHex {
			pub, err := decodeHex(hexKey)
			if err != nil {
				return fmt.Errorf("cluster validator %q: %w", hexKey, err)
			}
			if err := conn.AddValidator(cfg.Admin, cluster.Validator{PubKey: pub}); err != nil {
				return fmt.Errorf("register cluster validator: %w", err)
			}
		}
		d.RegisterConnection("cluster", conn)
		clusterServer = cluster.NewServer(conn, logger)
		logger.Info("cluster connection registered", "threshold", cfg.ClusterThreshold, "validators", len(cfg.ClusterValidatorsHex))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler)
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	var clusterSrv *http.Server
	if clusterServer != nil {
		clusterSrv = &http.Server{Addr: cfg.ClusterListen, Handler: clusterServer.Handler()}
		go func() {
			if err := clusterSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("cluster ingest server stopped", "error", err)
			}
		}()
	}

	logger.Info("xcalld started", "network_id", cfg.NetworkID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("xcalld shutting down")
	_ = metricsSrv.Shutdown(ctx)
	if clusterSrv != nil {
		_ = clusterSrv.Shutdown(ctx)
	}
	return nil
}

func openStore(cfg config.Settings) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case "badger":
		db, err := badgerstore.Open(cfg.StorePath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return memstore.New(), func() {}, nil
	}
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
