package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// Queue tests need a live Redis; set REDIS_ADDR to run them.
func testQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 9})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not reachable: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush test db: %v", err)
	}

	lgr, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	q := NewRedisQueue(lgr, client,
		WithKeyPrefix("signalforge-test"),
		WithQueueName("signals"),
		WithDequeueTimeout(time.Second),
	)
	t.Cleanup(func() { _ = client.Close() })
	return q, client
}

func TestEnqueueDequeueRoundTrip(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &models.Job{
		UserID:  "u1",
		Symbol:  "BTCUSDT",
		Holding: models.HoldingAuto,
		Risk:    models.RiskGrowth,
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job == nil {
		t.Fatalf("expected job, got nil")
	}
	if job.ID != id || job.Symbol != "BTCUSDT" || job.Risk != models.RiskGrowth {
		t.Fatalf("metadata mismatch: %+v", job)
	}
	if job.Status != models.StatusPending {
		t.Fatalf("expected pending, got %s", job.Status)
	}

	// Queue is now empty; a second dequeue times out and returns nil.
	job, err = q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue empty: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil on empty queue, got %+v", job)
	}
}

func TestDequeueSkipsExpiredMetadata(t *testing.T) {
	q, client := testQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &models.Job{Symbol: "ETHUSDT", Risk: models.RiskSafe})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	// Simulate the 24h expiry firing while the id still sits in the list.
	if err := client.Del(ctx, q.jobKey(id)).Err(); err != nil {
		t.Fatalf("del metadata: %v", err)
	}

	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job != nil {
		t.Fatalf("expected nil for dangling id, got %+v", job)
	}
}

func TestStatusAndResultLifecycle(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &models.Job{Symbol: "BTCUSDT", Risk: models.RiskGrowth})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := q.UpdateStatus(ctx, id, models.StatusProcessing); err != nil {
		t.Fatalf("update status: %v", err)
	}
	jr, err := q.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if jr.Status != models.StatusProcessing {
		t.Fatalf("expected processing, got %s", jr.Status)
	}

	result := &models.SignalResult{
		JobID: id,
		Setup: models.TradeSetup{Side: models.SideLong, Entry: 95, StopLoss: 91.58, TakeProfits: []float64{100.13, 103.55, 108.68}, RiskReward: 1.5, Confidence: 0.9, Reason: "test"},
	}
	if err := q.SetResult(ctx, id, result); err != nil {
		t.Fatalf("set result: %v", err)
	}

	jr, err = q.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if jr.Status != models.StatusCompleted {
		t.Fatalf("expected completed, got %s", jr.Status)
	}
	if jr.Result == nil || jr.Result.Setup.Side != models.SideLong || jr.Result.Setup.Entry != 95 {
		t.Fatalf("result round trip mismatch: %+v", jr.Result)
	}
}

func TestSetErrorMarksFailed(t *testing.T) {
	q, _ := testQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, &models.Job{Symbol: "BTCUSDT", Risk: models.RiskGrowth})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.SetError(ctx, id, "upstream: candles unavailable"); err != nil {
		t.Fatalf("set error: %v", err)
	}

	jr, err := q.GetResult(ctx, id)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if jr.Status != models.StatusFailed {
		t.Fatalf("expected failed, got %s", jr.Status)
	}
	if jr.Error == "" {
		t.Fatalf("expected error message")
	}
}

func TestGetResultUnknownID(t *testing.T) {
	q, _ := testQueue(t)

	jr, err := q.GetResult(context.Background(), "no-such-job")
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if jr.Status != models.StatusNotFound {
		t.Fatalf("expected not_found, got %s", jr.Status)
	}
}
