package worker

import (
	"context"
	"log"
	"time"
)

// Lener reports how many jobs are pending on a queue.
type Lener interface {
	Len(ctx context.Context, queue string) (int64, error)
}

// QueueMonitor samples queue depth into the metrics gauge.
type QueueMonitor struct {
	broker   Lener
	queues   []string
	interval time.Duration
	logger   *log.Logger
}

func NewQueueMonitor(broker Lener, queues []string, interval time.Duration, logger *log.Logger) *QueueMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &QueueMonitor{broker: broker, queues: queues, interval: interval, logger: logger}
}

// Run samples each queue on the interval until ctx is cancelled. Sampling
// errors are logged and skipped; depth is observability, not correctness.
func (m *QueueMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	m.sample(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample(ctx)
		}
	}
}

func (m *QueueMonitor) sample(ctx context.Context) {
	for _, q := range m.queues {
		n, err := m.broker.Len(ctx, q)
		if err != nil {
			m.logger.Printf("queue depth sample %s: %v", q, err)
			continue
		}
		queueDepth.WithLabelValues(q).Set(float64(n))
	}
}
