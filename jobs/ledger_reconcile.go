package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/kitchen/internal/inventory"
	jobmetrics "github.com/odyssey-erp/kitchen/internal/jobs"
)

const reconcileConcurrency = 4

// LedgerReconciler checks ingredient stock against the ledger.
type LedgerReconciler interface {
	ListIngredientIDs(ctx context.Context) ([]int64, error)
	Reconcile(ctx context.Context, ingredientID int64) (inventory.Reconciliation, error)
}

// LedgerReconcileJob verifies that every ingredient's stock equals its opening
// balance plus the sum of its ledger entries.
type LedgerReconcileJob struct {
	Inventory LedgerReconciler
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewLedgerReconcileJob initialises the handler.
func NewLedgerReconcileJob(reconciler LedgerReconciler, logger *slog.Logger, metrics *jobmetrics.Metrics) *LedgerReconcileJob {
	return &LedgerReconcileJob{Inventory: reconciler, Logger: logger, Metrics: metrics}
}

// Handle executes the reconciliation.
func (j *LedgerReconcileJob) Handle(ctx context.Context, _ *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("ledger reconcile: handler not configured")
	}
	start := time.Now()
	tracker := j.metrics().Track(TaskLedgerReconcile)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	imbalanced, checked, err := j.Run(ctx)
	if err != nil {
		j.logger().Error("ledger reconcile failed", slog.Any("error", err))
		return err
	}
	for _, rec := range imbalanced {
		j.logger().Warn("ledger imbalance detected",
			slog.Int64("ingredient_id", rec.IngredientID),
			slog.String("current_stock", rec.CurrentStock.String()),
			slog.String("expected_stock", rec.OpeningStock.Add(rec.LedgerSum).String()))
	}
	j.metrics().SetLedgerImbalances(len(imbalanced))
	j.logger().Info("completed ledger reconcile",
		slog.Int("ingredients", checked),
		slog.Int("imbalanced", len(imbalanced)),
		slog.Duration("duration", time.Since(start)))
	return nil
}

// Run reconciles every ingredient and returns the unbalanced ones along with the
// number of ingredients checked. Ingredients deleted mid-run are ignored.
func (j *LedgerReconcileJob) Run(ctx context.Context) ([]inventory.Reconciliation, int, error) {
	ids, err := j.Inventory.ListIngredientIDs(ctx)
	if err != nil {
		return nil, 0, err
	}

	var (
		mu         sync.Mutex
		imbalanced []inventory.Reconciliation
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(reconcileConcurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			rec, err := j.Inventory.Reconcile(ctx, id)
			if err != nil {
				if inventory.IsNotFound(err) {
					return nil
				}
				return err
			}
			if !rec.Balanced {
				mu.Lock()
				imbalanced = append(imbalanced, rec)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return imbalanced, len(ids), nil
}

func (j *LedgerReconcileJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLedgerReconcile))
	}
	return slog.Default().With(slog.String("job", TaskLedgerReconcile))
}

func (j *LedgerReconcileJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
