package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated         = "OrderCreated"
	EventOrderStatusChanged   = "OrderStatusChanged"
	EventPaymentProofUploaded = "PaymentProofUploaded"
	EventOrderCancelled       = "OrderCancelled"
	EventStockWrittenOff      = "StockWrittenOff"
)

// Topic kafka untuk stream lifecycle yang durable. Partition key = order_id
// supaya semua event satu order maintain urutan.
const TopicOrderLifecycle = "order.lifecycle"

func PartitionKey(orderID string) []byte { return []byte(orderID) }

type Event struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"` // di-stamp server saat publish
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- Payload per event ----

type OrderEventPayload struct {
	OrderID        string         `json:"order_id"`
	BuyerID        string         `json:"buyer_id"`
	ShopID         string         `json:"shop_id"`
	TotalAmount    int64          `json:"total_amount"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Status         OrderStatus    `json:"status"`
}

type StockWrittenOffPayload struct {
	ProductID string `json:"product_id"`
	ShopID    string `json:"shop_id"`
	Quantity  int    `json:"quantity"`
}

func orderPayload(o *Order) OrderEventPayload {
	return OrderEventPayload{
		OrderID:        o.ID,
		BuyerID:        o.BuyerID,
		ShopID:         o.ShopID,
		TotalAmount:    o.TotalAmount,
		PaymentStatus:  o.PaymentStatus,
		DeliveryStatus: o.DeliveryStatus,
		Status:         o.Status,
	}
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
