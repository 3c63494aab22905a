// Command pollsync mirrors PollEscrow contract state into Firestore. It
// serves the Insight webhook, the reconciliation endpoint, World ID
// verification and the read API for the Poll in Cash frontend.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cloudfirestore "cloud.google.com/go/firestore"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/pollincash/pollsync/internal/chain"
	"github.com/pollincash/pollsync/internal/config"
	"github.com/pollincash/pollsync/internal/httpapi"
	"github.com/pollincash/pollsync/internal/metrics"
	"github.com/pollincash/pollsync/internal/middleware"
	"github.com/pollincash/pollsync/internal/services/payouts"
	"github.com/pollincash/pollsync/internal/services/projector"
	"github.com/pollincash/pollsync/internal/services/reconciler"
	"github.com/pollincash/pollsync/internal/services/verifier"
	"github.com/pollincash/pollsync/internal/storage/firestore"
	"github.com/pollincash/pollsync/internal/worldid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}

	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var fsOpts []option.ClientOption
	if cfg.Firestore.CredentialsFile != "" {
		fsOpts = append(fsOpts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
	}
	fsClient, err := cloudfirestore.NewClient(ctx, cfg.Firestore.ProjectID, fsOpts...)
	if err != nil {
		log.WithError(err).Fatal("create firestore client")
	}
	defer fsClient.Close()
	store := firestore.New(fsClient)

	chainClient, err := chain.NewClient(chain.Config{
		RPCURL:          cfg.Chain.RPCURL,
		ContractAddress: cfg.Chain.ContractAddress,
		Timeout:         cfg.Chain.Timeout,
	})
	if err != nil {
		log.WithError(err).Fatal("create chain client")
	}
	defer chainClient.Close()

	proj := projector.New(store, log)
	pay := payouts.New(store, log)
	rec := reconciler.New(chainClient, proj, store, log)

	var ver *verifier.Service
	if cfg.WorldID.APIKey != "" {
		wc, err := worldid.NewClient(worldid.Config{
			APIURL: cfg.WorldID.APIURL,
			APIKey: cfg.WorldID.APIKey,
		})
		if err != nil {
			log.WithError(err).Fatal("create World ID client")
		}
		ver = verifier.New(wc, store, log)
	} else {
		log.Warn("WLD_API_KEY not set, verification endpoint disabled")
	}

	handler := httpapi.NewHandler(httpapi.Services{
		Projector:       proj,
		Payouts:         pay,
		Reconciler:      rec,
		Verifier:        ver,
		Polls:           store,
		ContractAddress: chainClient.ContractAddress(),
	}, log)

	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           cors.Handler(metrics.InstrumentHandler(handler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).
			WithField("contract", chainClient.ContractAddress()).
			Info("pollsync listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		log.WithError(err).Error("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
}

func newLogger(cfg config.LogConfig) *logrus.Entry {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	return logger.WithField("service", "pollsync")
}
