// README: Change feed over Redis pub/sub; replaces the source's live listeners.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"fleetops/internal/logger"
	"fleetops/internal/types"
)

// Change is broadcast after every trip or vehicle mutation so connected
// clients can re-derive state from the raw records.
type Change struct {
	Entity string    `json:"entity"` // "trip" or "vehicle"
	ID     types.ID  `json:"id"`
	Status string    `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher is fire-and-forget: a failed publish is logged, never surfaced.
type Publisher interface {
	TripChanged(ctx context.Context, id types.ID, status string)
	VehicleChanged(ctx context.Context, id types.ID, status string)
}

type RedisPublisher struct {
	redis   *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisPublisher(rdb *redis.Client, channel string, log logger.Logger) *RedisPublisher {
	return &RedisPublisher{redis: rdb, channel: channel, log: log}
}

func (p *RedisPublisher) TripChanged(ctx context.Context, id types.ID, status string) {
	p.publish(ctx, Change{Entity: "trip", ID: id, Status: status, At: time.Now()})
}

func (p *RedisPublisher) VehicleChanged(ctx context.Context, id types.ID, status string) {
	p.publish(ctx, Change{Entity: "vehicle", ID: id, Status: status, At: time.Now()})
}

func (p *RedisPublisher) publish(ctx context.Context, c Change) {
	payload, err := json.Marshal(c)
	if err != nil {
		p.log.Error("marshal change event", "error", err)
		return
	}
	if err := p.redis.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.log.Warn("publish change event", "entity", c.Entity, "id", c.ID, "error", err)
	}
}

// Subscribe delivers decoded changes until ctx is cancelled. Used by the
// admin dashboard gateway.
func (p *RedisPublisher) Subscribe(ctx context.Context) (<-chan Change, error) {
	sub := p.redis.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, err
	}
	out := make(chan Change)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				var c Change
				if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
					p.log.Warn("decode change event", "error", err)
					continue
				}
				out <- c
			}
		}
	}()
	return out, nil
}
