package attendance

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"presensi/internal/metrics"
	"presensi/internal/model"
	"presensi/internal/queue"
)

// Reconciler restores hadir = EXISTS(scan_log) for one registrant.
type Reconciler interface {
	ReconcileHadir(ctx context.Context, ref model.Ref) error
}

// Consumer processes scan events published by the Service.
type Consumer struct {
	store Reconciler
	log   zerolog.Logger
}

// NewConsumer creates a consumer that reconciles through store.
func NewConsumer(store Reconciler, log zerolog.Logger) *Consumer {
	return &Consumer{store: store, log: log}
}

// Run handles messages until ctx is cancelled or the queue closes.
func (c *Consumer) Run(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.log.Info().Msg("consumer started")
	for msg := range messages {
		if err := c.Handle(ctx, msg); err != nil {
			c.log.Error().Err(err).Str("type", msg.Type).Msg("message failed")
		}
	}
	c.log.Info().Msg("consumer stopped")
	return nil
}

// Handle processes one message.
func (c *Consumer) Handle(ctx context.Context, msg queue.Message) error {
	metrics.QueueMessages.WithLabelValues(msg.Type).Inc()

	var e model.ScanLogEntry
	switch msg.Type {
	case queue.TypeCheckIn, queue.TypeScanDeleted:
		if err := json.Unmarshal(msg.Body, &e); err != nil {
			return fmt.Errorf("decode %s: %w", msg.Type, err)
		}
	default:
		c.log.Warn().Str("type", msg.Type).Msg("unknown message type")
		return nil
	}

	if msg.Type == queue.TypeCheckIn {
		c.log.Info().
			Str("id", e.ID).
			Str("ref", e.Ref().String()).
			Str("nama", e.Nama).
			Time("waktu_scan", e.WaktuScan).
			Msg("attendance recorded")
		return nil
	}

	if err := c.store.ReconcileHadir(ctx, e.Ref()); err != nil {
		return fmt.Errorf("reconcile %s: %w", e.Ref(), err)
	}
	c.log.Info().Str("ref", e.Ref().String()).Msg("hadir reconciled")
	return nil
}
