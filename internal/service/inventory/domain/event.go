// internal/service/inventory/domain/event.go
package domain

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	PaymentStatusSuccess = "SUCCESS"
	DeliveryStatusFailed = "FAILED"
)

// OutcomeStatus 是处理入站事件后发布的结果状态
type OutcomeStatus string

const (
	OutcomeReserved   OutcomeStatus = "reserved"
	OutcomeOpen       OutcomeStatus = "open"
	OutcomeOutOfStock OutcomeStatus = "ofs"
	OutcomeDelivery   OutcomeStatus = "delivery"
)

// OrderID 兼容上游以字符串或数字形式发送的订单号
type OrderID string

func (id *OrderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = OrderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = OrderID(n.String())
	return nil
}

// PaymentOutcome 是 payment_status 主题上的一次支付结果
type PaymentOutcome struct {
	OrderID   OrderID
	ProductID int64
	Amount    int64
	Status    string
}

func (p PaymentOutcome) Succeeded() bool {
	return p.Status == PaymentStatusSuccess
}

// IdempotencyKey 以 (order_id, 事件类型) 标识一次支付结果；没有订单号时返回空串
func (p PaymentOutcome) IdempotencyKey() string {
	if p.OrderID == "" {
		return ""
	}
	return "payment:" + p.Status + ":" + string(p.OrderID)
}

// DeliveryOutcome 是 delivery_status 主题上的一次配送结果
type DeliveryOutcome struct {
	OrderID   OrderID
	ProductID int64
	Quantity  int64
	Status    string
}

func (d DeliveryOutcome) IdempotencyKey() string {
	if d.OrderID == "" {
		return ""
	}
	return "delivery:" + d.Status + ":" + string(d.OrderID)
}

// OutcomeEvent 发布到 inventory_update / inventory_failure。
// Quantity 是本次实际移动的数量，被拒绝的预留不携带该字段。
type OutcomeEvent struct {
	EventID    string        `json:"event_id"`
	OrderID    OrderID       `json:"order_id,omitempty"`
	ProductID  int64         `json:"product_id"`
	Status     OutcomeStatus `json:"status"`
	Quantity   int64         `json:"quantity,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

func NewOutcomeEvent(orderID OrderID, productID int64, status OutcomeStatus, quantity int64) OutcomeEvent {
	return OutcomeEvent{
		EventID:    uuid.NewString(),
		OrderID:    orderID,
		ProductID:  productID,
		Status:     status,
		Quantity:   quantity,
		OccurredAt: time.Now().UTC(),
	}
}
