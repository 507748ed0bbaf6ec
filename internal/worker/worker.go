package worker

import (
	"context"

	"storefront/internal/broker"
	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// CacheInvalidator drops cached catalog responses.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CatalogWorker keeps the storefront catalog cache consistent with stock
// changes made by orders.
type CatalogWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        CacheInvalidator
	logger       *zap.Logger
}

// NewCatalogWorker creates a new catalog worker
func NewCatalogWorker(consumer *broker.Consumer, cache CacheInvalidator) *CatalogWorker {
	w := &CatalogWorker{
		consumer: consumer,
		cache:    cache,
		logger:   util.GetLogger().Named("catalog-worker"),
	}

	w.eventHandler = broker.NewEventHandler()
	w.eventHandler.OnOrderPlaced(w.HandleOrderPlaced)
	w.eventHandler.OnOrderStatusChanged(w.HandleOrderStatusChanged)
	return w
}

// HandleOrderPlaced invalidates the catalog; placed orders always change stock.
func (w *CatalogWorker) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(models.EventTypeOrderPlaced).Inc()
	w.logger.Debug("Order placed", zap.Int64("order_id", event.OrderID), zap.Int("lines", len(event.Items)))
	return w.cache.Invalidate(ctx)
}

// HandleOrderStatusChanged invalidates the catalog when the change put
// units back in stock.
func (w *CatalogWorker) HandleOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(models.EventTypeOrderStatusChanged).Inc()
	if !event.Restocked {
		return nil
	}
	w.logger.Debug("Order restocked",
		zap.Int64("order_id", event.OrderID),
		zap.String("from", string(event.From)),
		zap.String("to", string(event.To)))
	return w.cache.Invalidate(ctx)
}

// Start starts the worker
func (w *CatalogWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting catalog worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CatalogWorker) Stop() error {
	w.logger.Info("Stopping catalog worker")
	return w.consumer.Close()
}
