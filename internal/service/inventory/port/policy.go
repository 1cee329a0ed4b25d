package port

import (
	"context"

	"stockflow/internal/service/inventory/domain"
)

// RestockPolicy 决定一次配送结果是否需要回补库存
type RestockPolicy interface {
	ShouldRestock(ctx context.Context, outcome domain.DeliveryOutcome) (bool, error)
}
