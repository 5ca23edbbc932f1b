package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront-service/internal/orders"
	"storefront-service/internal/util"
)

// RefreshWorker periodically replaces the local order cache with a full sync
// from the backend, so orders created through other channels (admin console,
// other devices) eventually show up. Individual sync failures are logged and
// retried on the next tick; the worker never gives up.
type RefreshWorker struct {
	store    *orders.Store
	interval time.Duration
	logger   *zap.Logger
}

func NewRefreshWorker(store *orders.Store, interval time.Duration) *RefreshWorker {
	return &RefreshWorker{
		store:    store,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the refresh loop until ctx is cancelled.
func (w *RefreshWorker) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("Order refresh worker disabled")
		return
	}

	w.logger.Info("Starting order refresh worker", zap.Duration("interval", w.interval))
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Order refresh worker stopped")
			return
		case <-ticker.C:
			res := w.store.FetchOrders(ctx)
			if !res.Success {
				w.logger.Debug("Order refresh skipped", zap.String("reason", res.Error))
			}
		}
	}
}
