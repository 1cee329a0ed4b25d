package domain

// Topics 是库存服务消费与产出的主题名
type Topics struct {
	PaymentStatus    string
	DeliveryStatus   string
	InventoryUpdate  string
	InventoryFailure string
}

func DefaultTopics() Topics {
	return Topics{
		PaymentStatus:    "payment_status",
		DeliveryStatus:   "delivery_status",
		InventoryUpdate:  "inventory_update",
		InventoryFailure: "inventory_failure",
	}
}
