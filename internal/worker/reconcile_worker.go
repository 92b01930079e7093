package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/OmPals/VirtualClassroom/internal/models"
	"github.com/OmPals/VirtualClassroom/internal/service"
	"github.com/OmPals/VirtualClassroom/internal/worker/queue"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReconcileWorker consumes assignment events and reconciles the assignment
// each one names, repairing whatever an interrupted request left behind.
type ReconcileWorker interface {
	Start(ctx context.Context) error
	Stop() error
	GetStats() WorkerStats
}

type WorkerStats struct {
	BusyWorkers         int       `json:"busy_workers"`
	QueueLength         int       `json:"queue_length"`
	TotalProcessed      int       `json:"total_processed"`
	FailedJobs          int       `json:"failed_jobs"`
	DiscardedMessages   int       `json:"discarded_messages"`
	SubmissionsCreated  int       `json:"submissions_created"`
	SubmissionsRemoved  int       `json:"submissions_removed"`
	ProjectionsRepaired int       `json:"projections_repaired"`
	ProjectionsRemoved  int       `json:"projections_removed"`
	StartedAt           time.Time `json:"started_at"`
}

type reconcileWorker struct {
	pool       *WorkerPool
	consumer   queue.Consumer
	reconciler service.ReconcileService
	logger     zerolog.Logger

	statsMu sync.RWMutex
	stats   WorkerStats
	done    chan struct{}
}

func NewReconcileWorker(
	pool *WorkerPool,
	consumer queue.Consumer,
	reconciler service.ReconcileService,
	logger zerolog.Logger,
) ReconcileWorker {
	return &reconcileWorker{
		pool:       pool,
		consumer:   consumer,
		reconciler: reconciler,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

func (w *reconcileWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting reconcile worker...")

	if err := w.pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	msgs, err := w.consumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	w.statsMu.Lock()
	w.stats.StartedAt = time.Now()
	w.statsMu.Unlock()

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Reconcile worker started successfully")
	return nil
}

// Stop waits for the message loop to exit before draining the pool, so it
// should be called after the context passed to Start is cancelled.
func (w *reconcileWorker) Stop() error {
	w.logger.Info().Msg("Stopping reconcile worker...")

	if err := w.consumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		w.logger.Warn().Msg("Message loop did not exit in time")
	}

	if err := w.pool.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	stats := w.GetStats()
	w.logger.Info().
		Int("total_processed", stats.TotalProcessed).
		Int("failed_jobs", stats.FailedJobs).
		Dur("uptime", time.Since(stats.StartedAt)).
		Msg("Reconcile worker stopped")

	return nil
}

func (w *reconcileWorker) processMessages(ctx context.Context, msgs <-chan queue.Message) {
	defer close(w.done)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}

			accepted := w.pool.Submit(func(ctx context.Context) {
				w.handle(ctx, msg)
			})
			if !accepted {
				if err := msg.Nack(false, true); err != nil {
					w.logger.Error().Err(err).Msg("Failed to nack message")
				}
			}
		}
	}
}

func (w *reconcileWorker) handle(ctx context.Context, msg queue.Message) {
	report, err := w.processMessage(ctx, msg)
	if err == nil {
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		w.record(report)
		return
	}

	if isPermanentError(err) {
		w.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("Discarding malformed message")
		w.statsMu.Lock()
		w.stats.DiscardedMessages++
		w.statsMu.Unlock()

		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Failed to process message")
	w.statsMu.Lock()
	w.stats.FailedJobs++
	w.statsMu.Unlock()

	if nackErr := msg.Nack(false, true); nackErr != nil {
		w.logger.Error().Err(nackErr).Msg("Failed to nack message")
	}
}

func (w *reconcileWorker) processMessage(ctx context.Context, msg queue.Message) (*models.ReconcileReport, error) {
	var event models.AssignmentEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return nil, permanent(fmt.Errorf("failed to unmarshal event: %w", err))
	}

	if strings.TrimSpace(event.AssignmentID) == "" {
		return nil, permanent(errors.New("empty assignment_id"))
	}
	id, err := primitive.ObjectIDFromHex(event.AssignmentID)
	if err != nil {
		return nil, permanent(fmt.Errorf("invalid assignment_id %q: %w", event.AssignmentID, err))
	}

	w.logger.Debug().
		Str("event_id", event.EventID).
		Str("type", event.Type.String()).
		Str("assignment_id", event.AssignmentID).
		Msg("Reconciling assignment")

	return w.reconciler.ReconcileAssignment(ctx, id)
}

func (w *reconcileWorker) record(report *models.ReconcileReport) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	w.stats.TotalProcessed++
	if report == nil {
		return
	}
	w.stats.SubmissionsCreated += report.SubmissionsCreated
	w.stats.SubmissionsRemoved += report.SubmissionsRemoved
	w.stats.ProjectionsRepaired += report.ProjectionsRepaired
	w.stats.ProjectionsRemoved += report.ProjectionsRemoved
}

func (w *reconcileWorker) GetStats() WorkerStats {
	w.statsMu.RLock()
	stats := w.stats
	w.statsMu.RUnlock()

	pool := w.pool.Stats()
	stats.BusyWorkers = pool.BusyWorkers
	stats.QueueLength = pool.QueueLength
	return stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}
