package domain

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type paymentStatusMessage struct {
	OrderID   *OrderID `json:"order_id"`
	ProductID *int64   `json:"product_id"`
	Status    *string  `json:"status"`
	Amount    *int64   `json:"amount"`
}

type deliveryStatusMessage struct {
	OrderID   *OrderID `json:"order_id"`
	ProductID *int64   `json:"product_id"`
	Quantity  *int64   `json:"quantity"`
	Status    *string  `json:"status"`
}

// DecodePaymentOutcome 解析并校验 payment_status 消息，任何缺失或非法字段都返回 ErrMalformedEvent
func DecodePaymentOutcome(payload []byte) (PaymentOutcome, error) {
	var msg paymentStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return PaymentOutcome{}, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	switch {
	case msg.OrderID == nil:
		return PaymentOutcome{}, missingField("order_id")
	case msg.ProductID == nil:
		return PaymentOutcome{}, missingField("product_id")
	case msg.Status == nil || *msg.Status == "":
		return PaymentOutcome{}, missingField("status")
	case msg.Amount == nil:
		return PaymentOutcome{}, missingField("amount")
	}
	if *msg.ProductID <= 0 {
		return PaymentOutcome{}, errors.Wrapf(ErrMalformedEvent, "product_id %d is not a valid item id", *msg.ProductID)
	}
	if *msg.Amount <= 0 {
		return PaymentOutcome{}, errors.Wrapf(ErrMalformedEvent, "amount %d must be positive", *msg.Amount)
	}
	return PaymentOutcome{
		OrderID:   *msg.OrderID,
		ProductID: *msg.ProductID,
		Amount:    *msg.Amount,
		Status:    *msg.Status,
	}, nil
}

// DecodeDeliveryOutcome 解析并校验 delivery_status 消息。order_id 可缺省。
func DecodeDeliveryOutcome(payload []byte) (DeliveryOutcome, error) {
	var msg deliveryStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return DeliveryOutcome{}, errors.Wrap(ErrMalformedEvent, err.Error())
	}
	switch {
	case msg.ProductID == nil:
		return DeliveryOutcome{}, missingField("product_id")
	case msg.Quantity == nil:
		return DeliveryOutcome{}, missingField("quantity")
	case msg.Status == nil || *msg.Status == "":
		return DeliveryOutcome{}, missingField("status")
	}
	if *msg.ProductID <= 0 {
		return DeliveryOutcome{}, errors.Wrapf(ErrMalformedEvent, "product_id %d is not a valid item id", *msg.ProductID)
	}
	if *msg.Quantity <= 0 {
		return DeliveryOutcome{}, errors.Wrapf(ErrMalformedEvent, "quantity %d must be positive", *msg.Quantity)
	}
	out := DeliveryOutcome{
		ProductID: *msg.ProductID,
		Quantity:  *msg.Quantity,
		Status:    *msg.Status,
	}
	if msg.OrderID != nil {
		out.OrderID = *msg.OrderID
	}
	return out, nil
}

func missingField(name string) error {
	return errors.Wrapf(ErrMalformedEvent, "missing field %q", name)
}
