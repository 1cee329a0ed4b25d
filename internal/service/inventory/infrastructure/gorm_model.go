package infrastructure

import "time"

// StockItemModel 对应数据库中的 item 表，每个商品一行。
// Quantity 不带 default 标签，初始库存为 0 时也要原样写入。
type StockItemModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Name      string `gorm:"size:255;not null"`
	Quantity  int64  `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (StockItemModel) TableName() string {
	return "item"
}
