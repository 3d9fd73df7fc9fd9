package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	offerStream = "settlement:offers"
	tradeStream = "settlement:trades"

	// callTimeout bounds every settlement call so a slow ledger cannot stall
	// the tick loop.
	callTimeout = 250 * time.Millisecond
)

// RedisLedger mirrors offers and trades onto Redis streams. It is best-effort
// by contract: the caller logs and continues on any error.
type RedisLedger struct {
	client *redis.Client
}

// NewRedisLedger connects to Redis and verifies the connection once.
func NewRedisLedger(addr, password string, db int) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Info().Str("addr", addr).Msg("settlement ledger connected")
	return &RedisLedger{client: client}, nil
}

func (l *RedisLedger) RecordOffer(ctx context.Context, energy, price float64, seller string) (string, error) {
	ref := uuid.New().String()
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: offerStream,
		Values: map[string]interface{}{
			"ref":    ref,
			"energy": energy,
			"price":  price,
			"seller": seller,
		},
	}).Err()
	if err != nil {
		return "", fmt.Errorf("record offer: %w", err)
	}
	return ref, nil
}

func (l *RedisLedger) RecordTrade(ctx context.Context, offerRef string, energy float64, buyer string) (string, error) {
	ref := uuid.New().String()
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: tradeStream,
		Values: map[string]interface{}{
			"ref":       ref,
			"offer_ref": offerRef,
			"energy":    energy,
			"buyer":     buyer,
		},
	}).Err()
	if err != nil {
		return "", fmt.Errorf("record trade: %w", err)
	}
	return ref, nil
}

func (l *RedisLedger) CancelOffer(ctx context.Context, offerRef string) error {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	err := l.client.XAdd(ctx, &redis.XAddArgs{
		Stream: offerStream,
		Values: map[string]interface{}{
			"ref":       offerRef,
			"cancelled": true,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("cancel offer: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (l *RedisLedger) Close() error { return l.client.Close() }
