package infrastructure

import "stockflow/internal/service/inventory/domain"

// ToDomainStockRecord 将数据库模型转换为领域模型
func ToDomainStockRecord(model *StockItemModel) *domain.StockRecord {
	return &domain.StockRecord{
		ID:       model.ID,
		Name:     model.Name,
		Quantity: model.Quantity,
	}
}

// ToStockItemModel 将领域模型转换为数据库模型
func ToStockItemModel(record *domain.StockRecord) *StockItemModel {
	return &StockItemModel{
		ID:       record.ID,
		Name:     record.Name,
		Quantity: record.Quantity,
	}
}
