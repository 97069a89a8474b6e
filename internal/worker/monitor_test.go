package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeLener struct {
	depths map[string]int64
}

func (f *fakeLener) Len(_ context.Context, queue string) (int64, error) {
	n, ok := f.depths[queue]
	if !ok {
		return 0, errors.New("unknown queue")
	}
	return n, nil
}

func TestQueueMonitorSamplesDepths(t *testing.T) {
	broker := &fakeLener{depths: map[string]int64{"monitor_q1": 4, "monitor_q2": 0}}
	m := NewQueueMonitor(broker, []string{"monitor_q1", "monitor_q2", "monitor_missing"}, time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.Run(ctx)

	if got := testutil.ToFloat64(queueDepth.WithLabelValues("monitor_q1")); got != 4 {
		t.Fatalf("monitor_q1 depth = %v, want 4", got)
	}
	if got := testutil.ToFloat64(queueDepth.WithLabelValues("monitor_q2")); got != 0 {
		t.Fatalf("monitor_q2 depth = %v, want 0", got)
	}
}
