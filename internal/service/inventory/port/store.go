package port

import (
	"context"

	"stockflow/internal/service/inventory/domain"
)

// StockStore 是库存记录的出站端口。所有变更都必须通过这里的原子原语完成，
// 不允许调用方自行 读-改-写。
type StockStore interface {
	// Get 返回库存快照，记录不存在时返回 domain.ErrItemNotFound。
	Get(ctx context.Context, itemID int64) (*domain.StockRecord, error)

	// GetOrCreate 返回库存记录，不存在时按默认值原子地创建。
	GetOrCreate(ctx context.Context, itemID int64) (*domain.StockRecord, error)

	// Reserve 在同一原子范围内 get-or-create 并扣减 amount。
	// 扣减后会小于 0 时不做任何修改，返回当前快照和 domain.ErrInsufficientStock。
	Reserve(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error)

	// Restock 在同一原子范围内 get-or-create 并增加 amount。
	Restock(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error)

	// Adjust 对已存在的记录原子地执行 quantity += delta，不做下限校验。
	Adjust(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error)

	// AdjustBounded 与 Adjust 相同，但结果小于 0 时拒绝并返回 domain.ErrInsufficientStock。
	AdjustBounded(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error)
}

// Locker 提供按资源名的互斥
type Locker interface {
	Acquire(ctx context.Context, resource string) (release func(), err error)
}
