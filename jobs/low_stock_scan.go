package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/kitchen/internal/inventory"
	jobmetrics "github.com/odyssey-erp/kitchen/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// LowStockSource lists ingredients at or below their reorder level.
type LowStockSource interface {
	ListLowStock(ctx context.Context, ids []int64) ([]inventory.Ingredient, error)
}

// LowStockScanJob reports ingredients that need reordering, typically right after
// a delivery commit touched them.
type LowStockScanJob struct {
	Inventory LowStockSource
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLowStockScanJob initialises the handler.
func NewLowStockScanJob(source LowStockSource, logger *slog.Logger, metrics *jobmetrics.Metrics) *LowStockScanJob {
	return &LowStockScanJob{Inventory: source, Logger: logger, Metrics: metrics}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskLowStockScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("scoped_ingredients", len(payload.IngredientIDs)))
	if payload.OrderID > 0 {
		logger = logger.With(slog.Int64("order_id", payload.OrderID))
	}

	low, err := j.Inventory.ListLowStock(ctx, payload.IngredientIDs)
	if err != nil {
		logger.Error("low stock scan failed", slog.Any("error", err))
		return err
	}
	for _, ing := range low {
		logger.Warn("ingredient below reorder level",
			slog.Int64("ingredient_id", ing.ID),
			slog.String("name", ing.Name),
			slog.String("current_stock", ing.CurrentStock.String()),
			slog.String("min_stock_level", ing.MinStockLevel.String()))
	}
	if len(payload.IngredientIDs) == 0 {
		j.metrics().SetLowStock(len(low))
	}
	logger.Info("completed low stock scan",
		slog.Int("low_stock", len(low)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
