package infrastructure

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"stockflow/internal/pkg/redis"
	"stockflow/internal/service/inventory/domain"
)

const applyStockScriptName = "inventory_apply_delta"

const (
	applyNotFound     int64 = -1
	applyInsufficient int64 = 0
	applyOK           int64 = 1
)

// RedisStockStore 把每个商品存成一个 hash，所有变更都在同一段 Lua 脚本里完成
type RedisStockStore struct {
	redisClient *redis.Client
	defaults    domain.StockDefaults
}

// NewRedisStockStore 创建 Redis 库存实现，并注册库存脚本
func NewRedisStockStore(redisClient *redis.Client, defaults domain.StockDefaults) (*RedisStockStore, error) {
	if err := redisClient.LoadScriptFromContent(applyStockScriptName, applyStockScript); err != nil {
		return nil, fmt.Errorf("failed to load inventory script: %w", err)
	}
	return &RedisStockStore{redisClient: redisClient, defaults: defaults}, nil
}

func stockKey(itemID int64) string {
	return fmt.Sprintf("inventory:item:{%d}", itemID)
}

func (s *RedisStockStore) Get(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	fields, err := s.redisClient.GetClient().HGetAll(ctx, stockKey(itemID)).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "hgetall item %d", itemID)
	}
	if len(fields) == 0 {
		return nil, domain.ErrItemNotFound
	}
	quantity, err := strconv.ParseInt(fields["quantity"], 10, 64)
	if err != nil {
		return nil, errors.Wrapf(err, "parse quantity of item %d", itemID)
	}
	return &domain.StockRecord{ID: itemID, Name: fields["name"], Quantity: quantity}, nil
}

func (s *RedisStockStore) GetOrCreate(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, 0, true, false)
}

func (s *RedisStockStore) Reserve(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, -amount, true, true)
}

func (s *RedisStockStore) Restock(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, amount, true, false)
}

func (s *RedisStockStore) Adjust(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, delta, false, false)
}

func (s *RedisStockStore) AdjustBounded(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return s.apply(ctx, itemID, delta, false, true)
}

func (s *RedisStockStore) apply(ctx context.Context, itemID, delta int64, create, floor bool) (*domain.StockRecord, error) {
	keys := []string{stockKey(itemID)}
	args := []interface{}{delta, flag(create), flag(floor), s.defaults.InitialQuantity, s.defaults.Name}

	result, err := s.redisClient.RunScript(ctx, applyStockScriptName, keys, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "run inventory script for item %d", itemID)
	}

	reply, ok := result.([]interface{})
	if !ok || len(reply) != 3 {
		return nil, fmt.Errorf("unexpected result from inventory script: %T %v", result, result)
	}
	code, _ := reply[0].(int64)
	quantity, _ := reply[1].(int64)
	name, _ := reply[2].(string)
	record := &domain.StockRecord{ID: itemID, Name: name, Quantity: quantity}

	switch code {
	case applyOK:
		return record, nil
	case applyInsufficient:
		return record, domain.ErrInsufficientStock
	case applyNotFound:
		return nil, domain.ErrItemNotFound
	default:
		return nil, fmt.Errorf("unknown result code from inventory script: %d", code)
	}
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

var applyStockScript = `
-- KEYS[1]: 商品库存 hash, 例如: inventory:item:{42}
-- ARGV[1]: 数量变化 delta
-- ARGV[2]: 记录不存在时是否创建 (1/0)
-- ARGV[3]: 是否要求结果不小于 0 (1/0)
-- ARGV[4]: 初始库存
-- ARGV[5]: 默认名称

if redis.call('exists', KEYS[1]) == 0 then
    if ARGV[2] ~= '1' then
        return {-1, 0, ''}
    end
    redis.call('hset', KEYS[1], 'name', ARGV[5], 'quantity', ARGV[4])
end

local quantity = tonumber(redis.call('hget', KEYS[1], 'quantity'))
local name = redis.call('hget', KEYS[1], 'name') or ''
local delta = tonumber(ARGV[1])

if ARGV[3] == '1' and quantity + delta < 0 then
    return {0, quantity, name}
end

quantity = redis.call('hincrby', KEYS[1], 'quantity', delta)
return {1, quantity, name}
`
