package worker

import (
	"context"
	"errors"
	"time"

	"crosplit/internal/config"
	"crosplit/internal/database"
	"crosplit/internal/logger"
	"crosplit/internal/services/experiment"
	"crosplit/internal/services/notify"
	"crosplit/internal/worker/processors"

	"github.com/robfig/cron/v3"
	"github.com/segmentio/kafka-go"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Worker delivers queued notifications and runs the scheduled sweeps.
type Worker struct {
	config      *config.Config
	logger      *logger.Logger
	store       *database.Database
	reader      messageReader
	processor   *processors.EventProcessor
	coordinator *experiment.Coordinator
	scheduler   *cron.Cron
}

func New(cfg *config.Config, logger *logger.Logger, db *database.Database) (*Worker, error) {
	// The worker is the queue consumer, so its own sweeps mail directly.
	mailer := notify.NewMailer(cfg, logger)

	w := &Worker{
		config:      cfg,
		logger:      logger,
		store:       db,
		processor:   processors.NewEventProcessor(mailer, logger),
		coordinator: experiment.New(cfg, db, mailer, experiment.ConvertClientFactory(cfg.ConvertAPIURL, logger), logger),
		scheduler:   cron.New(),
	}

	if len(cfg.KafkaBrokers) > 0 {
		w.reader = kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.KafkaBrokers,
			GroupID:        "crosplit-worker",
			Topic:          cfg.KafkaNotifyTopic,
			MinBytes:       1,
			MaxBytes:       10e6, // 10MB
			CommitInterval: time.Second,
		})
	}

	if _, err := w.scheduler.AddFunc(cfg.SweepSchedule, w.runSweep); err != nil {
		return nil, err
	}
	if _, err := w.scheduler.AddFunc(cfg.ReconcileSchedule, w.runReconcile); err != nil {
		return nil, err
	}
	return w, nil
}

// Start runs the scheduler and, when a queue is configured, consumes it until ctx is done.
func (w *Worker) Start(ctx context.Context) {
	w.scheduler.Start()
	w.logger.Info("Worker started (sweep %q, reconcile %q)", w.config.SweepSchedule, w.config.ReconcileSchedule)

	if w.reader == nil {
		w.logger.Info("No Kafka brokers configured, notifications are mailed inline")
		<-ctx.Done()
		return
	}
	w.consume(ctx)
}

func (w *Worker) consume(ctx context.Context) {
	w.logger.Info("Listening for notifications on %s", w.config.KafkaNotifyTopic)

	for ctx.Err() == nil {
		readCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		message, err := w.reader.ReadMessage(readCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			w.logger.Error("Failed to read message: %v", err)
			continue
		}

		w.logger.Debug("Received message: %s", string(message.Value))

		if err := w.processor.Process(ctx, message.Value); err != nil {
			w.logger.Error("Failed to process event: %v", err)
			continue
		}
	}
}

func (w *Worker) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	settings, err := w.store.GetSettings(ctx)
	if err != nil {
		w.logger.Error("Significance sweep skipped: %v", err)
		return
	}
	result, err := w.coordinator.EvaluateSignificance(ctx, settings)
	if err != nil {
		w.logger.Error("Significance sweep failed: %v", err)
		return
	}
	w.logger.Info("Significance sweep finished, %d experiments checked", len(result.Experiments))
}

func (w *Worker) runReconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	settings, err := w.store.GetSettings(ctx)
	if err != nil {
		w.logger.Error("Reconcile skipped: %v", err)
		return
	}
	results, err := w.coordinator.Reconcile(ctx, settings)
	if err != nil {
		w.logger.Error("Reconcile failed: %v", err)
		return
	}

	updated := 0
	for _, r := range results {
		if r.Updated {
			updated++
		}
	}
	w.logger.Info("Reconcile finished, %d of %d experiments updated", updated, len(results))
}

func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	<-w.scheduler.Stop().Done()
	if w.reader != nil {
		w.reader.Close()
	}
}
