package infrastructure

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockflow/internal/service/inventory/domain"
)

// GormStockStore 是 StockStore 的 GORM 实现。
// 条件扣减写成单条 UPDATE ... WHERE quantity + ? >= 0，由数据库行锁保证原子性。
type GormStockStore struct {
	db       *gorm.DB
	defaults domain.StockDefaults
}

func NewGormStockStore(db *gorm.DB, defaults domain.StockDefaults) *GormStockStore {
	return &GormStockStore{db: db, defaults: defaults}
}

func (r *GormStockStore) Get(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	var model StockItemModel
	err := r.db.WithContext(ctx).Where("id = ?", itemID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, errors.Wrapf(err, "find item %d", itemID)
	}
	return ToDomainStockRecord(&model), nil
}

func (r *GormStockStore) GetOrCreate(ctx context.Context, itemID int64) (*domain.StockRecord, error) {
	return r.apply(ctx, itemID, 0, true, false)
}

func (r *GormStockStore) Reserve(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return r.apply(ctx, itemID, -amount, true, true)
}

func (r *GormStockStore) Restock(ctx context.Context, itemID, amount int64) (*domain.StockRecord, error) {
	return r.apply(ctx, itemID, amount, true, false)
}

func (r *GormStockStore) Adjust(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return r.apply(ctx, itemID, delta, false, false)
}

func (r *GormStockStore) AdjustBounded(ctx context.Context, itemID, delta int64) (*domain.StockRecord, error) {
	return r.apply(ctx, itemID, delta, false, true)
}

// apply 在一个事务里完成 get-or-create 与条件更新。
// 被下限拒绝时事务仍然提交，懒创建的记录得以保留。
func (r *GormStockStore) apply(ctx context.Context, itemID, delta int64, create, floor bool) (*domain.StockRecord, error) {
	var (
		model    StockItemModel
		rejected bool
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if create {
			seed := ToStockItemModel(r.defaults.NewStockRecord(itemID))
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
				return errors.Wrap(err, "seed item")
			}
		}

		if delta != 0 {
			update := tx.Model(&StockItemModel{}).Where("id = ?", itemID)
			if floor {
				update = update.Where("quantity + ? >= 0", delta)
			}
			res := update.Update("quantity", gorm.Expr("quantity + ?", delta))
			if res.Error != nil {
				return errors.Wrap(res.Error, "update quantity")
			}
			rejected = res.RowsAffected == 0
		}

		if err := tx.Where("id = ?", itemID).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrItemNotFound
			}
			return errors.Wrap(err, "reload item")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "apply delta %d to item %d", delta, itemID)
	}
	if rejected {
		return ToDomainStockRecord(&model), domain.ErrInsufficientStock
	}
	return ToDomainStockRecord(&model), nil
}
