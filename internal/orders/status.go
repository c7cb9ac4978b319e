package orders

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryShipped   DeliveryStatus = "shipped"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryCancelled DeliveryStatus = "cancelled"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusCompleted  OrderStatus = "completed"
	StatusCancelled  OrderStatus = "cancelled"
)

var validPayment = map[PaymentStatus]bool{
	PaymentPending: true, PaymentPaid: true, PaymentFailed: true,
}

var validDelivery = map[DeliveryStatus]bool{
	DeliveryPending: true, DeliveryShipped: true, DeliveryDelivered: true, DeliveryCancelled: true,
}

// DeriveStatus menghitung status agregat dari kedua axis. Kolom status
// di DB cuma cache dari fungsi ini; jangan pernah di-set manual.
func DeriveStatus(payment PaymentStatus, delivery DeliveryStatus, prev OrderStatus) OrderStatus {
	switch {
	case payment == PaymentPaid && delivery == DeliveryDelivered:
		return StatusCompleted
	case payment == PaymentFailed:
		return StatusCancelled
	case delivery == DeliveryCancelled:
		return StatusCancelled
	case delivery == DeliveryShipped:
		return StatusProcessing
	}
	return prev
}

// IsTerminal: cancelled dan completed tidak bisa dibuka lagi.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// canBuyerCancel: buyer hanya boleh batalkan selama semuanya masih pending.
func canBuyerCancel(o *Order) bool {
	return o.Status == StatusPending &&
		o.PaymentStatus == PaymentPending &&
		o.DeliveryStatus == DeliveryPending
}

// canMerchantCancel: merchant tidak boleh batalkan yang sudah jalan kirim
// atau yang sudah terminal.
func canMerchantCancel(o *Order) bool {
	if o.DeliveryStatus == DeliveryShipped || o.DeliveryStatus == DeliveryDelivered {
		return false
	}
	return !o.Status.IsTerminal()
}
