// Package worker drains pending delivery logs through provider adapters.
// There is no internal scheduler: every pass is triggered externally, by the
// admin endpoint or the deliver CLI command, so retry cadence is entirely the
// caller's choice.
package worker

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/delivery"
	"github.com/pixelrelay/pixelrelay-cloud/internal/domain/dispatch"
)

const errUnsupportedDestinationType = "unsupported_destination_type"

var deliveriesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pixelrelay_deliveries_processed_total",
	Help: "Delivery attempts by resulting status.",
}, []string{"status"})

// Worker dispatches claimed delivery logs through the matching adapter and
// records the outcome. Rows are claimed before dispatch so overlapping
// invocations never double-send.
type Worker struct {
	logs     delivery.Repository
	adapters dispatch.Registry
	logger   *zap.Logger
}

func NewWorker(logs delivery.Repository, adapters dispatch.Registry, logger *zap.Logger) *Worker {
	return &Worker{
		logs:     logs,
		adapters: adapters,
		logger:   logger,
	}
}

// ProcessPending claims up to limit due rows, oldest-created first, attempts
// each once, and returns the number of rows attempted. Individual delivery
// failures are recorded on the log, never returned; the error covers only
// the claim query itself. No attempt ceiling and no backoff are applied: a
// row left retrying is eligible again on the very next invocation.
func (w *Worker) ProcessPending(ctx context.Context, limit int) (int, error) {
	tasks, err := w.logs.ClaimDue(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, task := range tasks {
		w.process(ctx, task)
		processed++
	}

	return processed, nil
}

func (w *Worker) process(ctx context.Context, task *delivery.Task) {
	log := task.Log

	adapter, ok := w.adapters[task.Destination.Type]
	if !ok {
		w.finish(ctx, log.ID, delivery.StatusFailed, "", errUnsupportedDestinationType)
		w.logger.Warn("delivery_unsupported_destination_type",
			zap.Int64("delivery_log_id", log.ID),
			zap.String("destination_type", string(task.Destination.Type)),
		)
		return
	}

	result := adapter.Send(ctx, task.Event, task.Destination)

	status := delivery.StatusFailed
	switch result.Outcome {
	case dispatch.OutcomeSuccess:
		status = delivery.StatusSuccess
	case dispatch.OutcomeRetry:
		status = delivery.StatusRetrying
	}

	w.finish(ctx, log.ID, status, result.Response, result.ErrorMessage)

	w.logger.Info("delivery_attempted",
		zap.Int64("delivery_log_id", log.ID),
		zap.Int64("event_id", task.Event.ID),
		zap.Int64("destination_id", task.Destination.ID),
		zap.String("status", string(status)),
		zap.Int("attempts", log.Attempts),
	)
}

func (w *Worker) finish(ctx context.Context, logID int64, status delivery.Status, response, errMsg string) {
	response = delivery.Truncate(response, delivery.MaxResponseLen)
	errMsg = delivery.Truncate(errMsg, delivery.MaxErrorLen)

	if err := w.logs.Finish(ctx, logID, status, response, errMsg); err != nil {
		w.logger.Error("delivery_outcome_update_failed",
			zap.Error(err),
			zap.Int64("delivery_log_id", logID),
		)
		return
	}
	deliveriesProcessed.WithLabelValues(string(status)).Inc()
}
