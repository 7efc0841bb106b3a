package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/payments-engine/internal/config"
	"github.com/sheikh-saqib/payments-engine/internal/csvio"
	"github.com/sheikh-saqib/payments-engine/internal/diagnostics"
	"github.com/sheikh-saqib/payments-engine/internal/engine"
	"github.com/sheikh-saqib/payments-engine/internal/events/kafka"
	"github.com/sheikh-saqib/payments-engine/internal/interfaces"
	"github.com/sheikh-saqib/payments-engine/internal/logger"
	"github.com/sheikh-saqib/payments-engine/internal/snapshot"
	"github.com/sheikh-saqib/payments-engine/internal/storage/postgres"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a YAML config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-config path] <transactions.csv>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return nil
	}
	if flag.NArg() != 1 {
		flag.Usage()
		return errors.New("expected exactly one input file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer log.Sync()
	log = log.With(zap.String("run_id", runID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := diagnostics.NewMetrics(reg)

	if cfg.MetricsAddr != "" {
		srv := newHTTPServer(cfg.MetricsAddr, reg)
		go func() {
			log.Info("starting metrics server", zap.String("addr", cfg.MetricsAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	recorderOpts := diagnostics.Options{
		RunID:    runID,
		LogRate:  cfg.Log.DropRate,
		LogBurst: cfg.Log.DropBurst,
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.DropTopic, log)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Error("failed to close kafka publisher", zap.Error(err))
			}
		}()
		recorderOpts.Publisher = publisher
	}
	recorder := diagnostics.NewRecorder(log, metrics, recorderOpts)

	writers := []interfaces.SnapshotWriter{csvio.NewWriter(os.Stdout, cfg.Output.Precision)}
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return err
		}
		defer db.Close()

		store := postgres.NewSnapshotStore(db, runID)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		writers = append(writers, store)
	}

	eng, err := engine.New(engine.Options{
		Dispatcher:    cfg.Dispatcher(),
		RetainSettled: cfg.Ledger.RetainSettled,
		Observer:      recorder,
		Collector:     snapshot.NewCollector(log, writers...),
		Logger:        log,
	})
	if err != nil {
		return err
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	_, err = eng.Run(ctx, csvio.NewReader(bufio.NewReaderSize(f, 64*1024)))
	return err
}

func newHTTPServer(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
