package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erain9/runebook/pkg/core"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultTimeout = 2 * time.Second

// RedisOptions represents configuration options for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewClient creates a Redis client from opts
func NewClient(opts *RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

// RedisBackend implements core.OrderStore on Redis. Orders are stored as JSON
// under <prefix>:order:<id>; <prefix>:addr:<address> lists an address's order
// ids in insertion order.
type RedisBackend struct {
	client   *redis.Client
	prefix   string
	countKey string
	timeout  time.Duration
	logger   *zap.Logger
}

// NewRedisBackend creates a new instance of RedisBackend. A nil logger
// disables logging.
func NewRedisBackend(client *redis.Client, prefix string, logger *zap.Logger) *RedisBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackend{
		client:   client,
		prefix:   prefix,
		countKey: fmt.Sprintf("%s:count", prefix),
		timeout:  defaultTimeout,
		logger:   logger,
	}
}

func (b *RedisBackend) orderKey(orderID string) string {
	return fmt.Sprintf("%s:order:%s", b.prefix, orderID)
}

func (b *RedisBackend) addressKey(address string) string {
	return fmt.Sprintf("%s:addr:%s", b.prefix, address)
}

func (b *RedisBackend) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), b.timeout)
}

// Ping checks the connection
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// GetOrder retrieves an order from Redis by its ID
func (b *RedisBackend) GetOrder(orderID string) (*core.Order, error) {
	ctx, cancel := b.context()
	defer cancel()

	data, err := b.client.Get(ctx, b.orderKey(orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		b.logger.Error("failed to get order",
			zap.String("orderID", orderID),
			zap.Error(err))
		return nil, fmt.Errorf("redis get order %s: %w", orderID, err)
	}

	return b.decode(orderID, data)
}

func (b *RedisBackend) decode(orderID string, data []byte) (*core.Order, error) {
	var order core.Order
	if err := json.Unmarshal(data, &order); err != nil {
		b.logger.Error("failed to unmarshal order",
			zap.String("orderID", orderID),
			zap.Error(err))
		return nil, fmt.Errorf("decode order %s: %w", orderID, err)
	}
	return &order, nil
}

// StoreOrder stores a new order and appends it to its address index
func (b *RedisBackend) StoreOrder(order *core.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", order.ID(), err)
	}

	ctx, cancel := b.context()
	defer cancel()

	created, err := b.client.SetNX(ctx, b.orderKey(order.ID()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis store order %s: %w", order.ID(), err)
	}
	if !created {
		return core.ErrOrderExists
	}

	pipe := b.client.TxPipeline()
	pipe.RPush(ctx, b.addressKey(order.Address()), order.ID())
	pipe.Incr(ctx, b.countKey)
	if _, err := pipe.Exec(ctx); err != nil {
		b.logger.Error("failed to index order",
			zap.String("orderID", order.ID()),
			zap.String("address", order.Address()),
			zap.Error(err))
		return fmt.Errorf("redis index order %s: %w", order.ID(), err)
	}

	return nil
}

// UpdateOrder overwrites an existing order
func (b *RedisBackend) UpdateOrder(order *core.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", order.ID(), err)
	}

	ctx, cancel := b.context()
	defer cancel()

	updated, err := b.client.SetXX(ctx, b.orderKey(order.ID()), data, 0).Result()
	if err != nil {
		return fmt.Errorf("redis update order %s: %w", order.ID(), err)
	}
	if !updated {
		return core.ErrNotFound
	}
	return nil
}

// OrdersByAddress returns the address's orders in insertion order
func (b *RedisBackend) OrdersByAddress(address string) ([]*core.Order, error) {
	ctx, cancel := b.context()
	defer cancel()

	ids, err := b.client.LRange(ctx, b.addressKey(address), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list orders of %s: %w", address, err)
	}
	if len(ids) == 0 {
		return []*core.Order{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = b.orderKey(id)
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis load orders of %s: %w", address, err)
	}

	orders := make([]*core.Order, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			b.logger.Warn("address index points at a missing order",
				zap.String("address", address),
				zap.String("orderID", ids[i]))
			continue
		}
		order, err := b.decode(ids[i], []byte(s))
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// Count returns the number of stored orders
func (b *RedisBackend) Count() int {
	ctx, cancel := b.context()
	defer cancel()

	n, err := b.client.Get(ctx, b.countKey).Int()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			b.logger.Error("failed to read order count", zap.Error(err))
		}
		return 0
	}
	return n
}

var _ core.OrderStore = (*RedisBackend)(nil)
