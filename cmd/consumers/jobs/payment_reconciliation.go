package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"seminarbuchung/internal/config"
	"seminarbuchung/internal/service"
)

const defaultBatchSize = 50

// Reconciler is implemented by service.BookingService
type Reconciler interface {
	ReconcileOpenPayments(ctx context.Context, olderThan time.Time, limit int) (service.ReconcileResult, error)
}

// PaymentReconciliationJob re-verifies open bookings whose webhook never
// arrived. Only bookings older than MinAge are checked so a webhook in
// flight is not raced.
type PaymentReconciliationJob struct {
	reconciler Reconciler
	interval   time.Duration
	minAge     time.Duration
	batchSize  int
	now        func() time.Time

	ticker  *time.Ticker
	done    chan bool
	running sync.Mutex
}

// NewPaymentReconciliationJob creates a new payment reconciliation job
func NewPaymentReconciliationJob(reconciler Reconciler, cfg config.ReconcileConfig) *PaymentReconciliationJob {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &PaymentReconciliationJob{
		reconciler: reconciler,
		interval:   interval,
		minAge:     cfg.MinAge,
		batchSize:  batch,
		now:        time.Now,
		done:       make(chan bool),
	}
}

// Start runs a pass immediately and then once per interval
func (j *PaymentReconciliationJob) Start(ctx context.Context) {
	slog.Info("Starting payment reconciliation job", "check_interval", j.interval.String(), "min_age", j.minAge.String())

	j.ticker = time.NewTicker(j.interval)

	go j.reconcile(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.reconcile(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				slog.Info("Payment reconciliation job stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the background job
func (j *PaymentReconciliationJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

// reconcile skips the tick when the previous pass is still running
func (j *PaymentReconciliationJob) reconcile(ctx context.Context) {
	if !j.running.TryLock() {
		slog.Debug("Previous reconciliation pass still running, skipping")
		return
	}
	defer j.running.Unlock()

	olderThan := j.now().Add(-j.minAge)
	result, err := j.reconciler.ReconcileOpenPayments(ctx, olderThan, j.batchSize)
	if err != nil {
		slog.Error("Payment reconciliation failed", "error", err, "checked", result.Checked)
		return
	}

	if result.Checked == 0 {
		slog.Debug("No open payments to reconcile")
		return
	}

	slog.Info("Payment reconciliation pass finished",
		"checked", result.Checked,
		"paid", result.Paid,
		"rejected", result.Rejected,
		"failed", result.Failed)
}
