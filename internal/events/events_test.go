// README: Redis-backed change feed integration test; env-gated.
package events

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetops/internal/logger"
)

func TestPublishSubscribeRoundtrip(t *testing.T) {
	redisAddr := os.Getenv("FLEETOPS_TEST_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("FLEETOPS_TEST_REDIS_ADDR not set; skipping integration test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pub := NewRedisPublisher(rdb, "fleetops:test:changes", logger.Nop{})

	changes, err := pub.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	pub.TripChanged(ctx, "trip-1", "approved")
	pub.VehicleChanged(ctx, "veh-1", "assigned")

	got := map[string]Change{}
	for len(got) < 2 {
		select {
		case c, ok := <-changes:
			if !ok {
				t.Fatalf("feed closed after %d changes", len(got))
			}
			got[c.Entity] = c
		case <-ctx.Done():
			t.Fatalf("timed out after %d changes", len(got))
		}
	}

	if c := got["trip"]; c.ID != "trip-1" || c.Status != "approved" {
		t.Errorf("trip change = %+v", c)
	}
	if c := got["vehicle"]; c.ID != "veh-1" || c.Status != "assigned" {
		t.Errorf("vehicle change = %+v", c)
	}
	if got["trip"].At.IsZero() {
		t.Error("change timestamp not set")
	}
}
