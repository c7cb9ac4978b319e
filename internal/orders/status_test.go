package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		payment  PaymentStatus
		delivery DeliveryStatus
		prev     OrderStatus
		want     OrderStatus
	}{
		{"paid and delivered completes", PaymentPaid, DeliveryDelivered, StatusProcessing, StatusCompleted},
		{"payment failed cancels", PaymentFailed, DeliveryPending, StatusPending, StatusCancelled},
		{"delivery cancelled cancels", PaymentFailed, DeliveryCancelled, StatusPending, StatusCancelled},
		{"shipped means processing", PaymentPaid, DeliveryShipped, StatusPending, StatusProcessing},
		{"paid but pending delivery keeps previous", PaymentPaid, DeliveryPending, StatusPending, StatusPending},
		{"nothing changed keeps previous", PaymentPending, DeliveryPending, StatusPending, StatusPending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.payment, tt.delivery, tt.prev))
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusCancelled.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
}

func TestCancellationGates(t *testing.T) {
	pending := &Order{Status: StatusPending, PaymentStatus: PaymentPending, DeliveryStatus: DeliveryPending}
	assert.True(t, canBuyerCancel(pending))
	assert.True(t, canMerchantCancel(pending))

	paid := &Order{Status: StatusPending, PaymentStatus: PaymentPaid, DeliveryStatus: DeliveryPending}
	assert.False(t, canBuyerCancel(paid), "buyer cannot cancel once payment left pending")
	assert.True(t, canMerchantCancel(paid))

	shipped := &Order{Status: StatusProcessing, PaymentStatus: PaymentPaid, DeliveryStatus: DeliveryShipped}
	assert.False(t, canBuyerCancel(shipped))
	assert.False(t, canMerchantCancel(shipped))

	done := &Order{Status: StatusCompleted, PaymentStatus: PaymentPaid, DeliveryStatus: DeliveryDelivered}
	assert.False(t, canMerchantCancel(done))

	cancelled := &Order{Status: StatusCancelled, PaymentStatus: PaymentFailed, DeliveryStatus: DeliveryCancelled}
	assert.False(t, canMerchantCancel(cancelled))
}
