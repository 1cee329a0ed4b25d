// internal/service/inventory/domain/stock.go
package domain

// StockRecord 是单个商品的库存快照
type StockRecord struct {
	ID       int64  `json:"id"`
	Name     string `json:"name,omitempty"`
	Quantity int64  `json:"quantity"`
}

// StockDefaults 是懒创建库存记录时使用的初始值
type StockDefaults struct {
	Name            string
	InitialQuantity int64
}

// NewStockRecord 按默认值初始化一条库存记录
func (d StockDefaults) NewStockRecord(itemID int64) *StockRecord {
	return &StockRecord{ID: itemID, Name: d.Name, Quantity: d.InitialQuantity}
}

// StockAdjustmentNotice 是直接调整库存后发往 inventory_update 的通知
type StockAdjustmentNotice struct {
	ItemID  int64 `json:"item_id"`
	Success bool  `json:"success"`
}
