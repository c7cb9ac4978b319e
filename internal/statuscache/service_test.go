package statuscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders.git/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	sets    map[string]int
	failKey string // Set ke key ini gagal
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, sets: map[string]int{}}
}

func (c *memCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if key == c.failKey {
		return errors.New("redis down")
	}
	c.data[key] = value
	c.sets[key]++
	return nil
}

func lifecycleMessage(t *testing.T, eventID, orderID string) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(orders.OrderEventPayload{
		OrderID:        orderID,
		BuyerID:        "buyer-1",
		ShopID:         "shop-1",
		TotalAmount:    20000,
		PaymentStatus:  orders.PaymentPaid,
		DeliveryStatus: orders.DeliveryShipped,
		Status:         orders.StatusProcessing,
	})
	require.NoError(t, err)
	b, err := json.Marshal(orders.Event{
		EventID:       eventID,
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      "test-api",
		CorrelationID: orderID,
		Payload:       payload,
	})
	require.NoError(t, err)
	return kafkago.Message{Key: []byte(orderID), Value: b}
}

func TestHandleLifecycleEvent_ProjectsStatus(t *testing.T) {
	cache := newMemCache()
	svc := &Service{Cache: cache, ServiceName: "statuscache-test"}

	err := svc.HandleLifecycleEvent(context.Background(), lifecycleMessage(t, "evt-1", "order-1"))
	require.NoError(t, err)

	entry, ok := cache.data[fmt.Sprintf(redisx.KeyOrderStatus, "order-1")]
	require.True(t, ok)
	var got map[string]any
	require.NoError(t, json.Unmarshal(entry, &got))
	assert.Equal(t, "processing", got["status"])
	assert.Equal(t, "buyer-1", got["buyer_id"])
	assert.Equal(t, "shop-1", got["shop_id"])

	_, deduped := cache.data[fmt.Sprintf(redisx.KeyDedup, "statuscache-test", "evt-1")]
	assert.True(t, deduped)
}

func TestHandleLifecycleEvent_DedupByEventID(t *testing.T) {
	cache := newMemCache()
	svc := &Service{Cache: cache, ServiceName: "statuscache-test"}

	msg := lifecycleMessage(t, "evt-1", "order-1")
	require.NoError(t, svc.HandleLifecycleEvent(context.Background(), msg))
	require.NoError(t, svc.HandleLifecycleEvent(context.Background(), msg))

	assert.Equal(t, 1, cache.sets[fmt.Sprintf(redisx.KeyOrderStatus, "order-1")])
}

// Marker dedup hanya di-set setelah proyeksi sukses: gagal nulis cache
// tidak boleh bikin redelivery dianggap sudah diproses.
func TestHandleLifecycleEvent_FailedWriteStaysRetryable(t *testing.T) {
	cache := newMemCache()
	cache.failKey = fmt.Sprintf(redisx.KeyOrderStatus, "order-1")
	svc := &Service{Cache: cache, ServiceName: "statuscache-test"}

	msg := lifecycleMessage(t, "evt-1", "order-1")
	err := svc.HandleLifecycleEvent(context.Background(), msg)
	require.Error(t, err)
	_, deduped := cache.data[fmt.Sprintf(redisx.KeyDedup, "statuscache-test", "evt-1")]
	assert.False(t, deduped, "dedup marker must not be set before the projection lands")

	// redis pulih -> redelivery diproses normal
	cache.failKey = ""
	require.NoError(t, svc.HandleLifecycleEvent(context.Background(), msg))
	_, ok := cache.data[fmt.Sprintf(redisx.KeyOrderStatus, "order-1")]
	assert.True(t, ok)
}

func TestHandleLifecycleEvent_SkipsNonOrderEvents(t *testing.T) {
	cache := newMemCache()
	svc := &Service{Cache: cache, ServiceName: "statuscache-test"}

	b, err := json.Marshal(orders.Event{
		EventID:      "evt-stock",
		EventType:    orders.EventStockWrittenOff,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test-api",
		Payload:      json.RawMessage(`{"product_id":"p-1","shop_id":"shop-1","quantity":2}`),
	})
	require.NoError(t, err)

	require.NoError(t, svc.HandleLifecycleEvent(context.Background(), kafkago.Message{Value: b}))
	assert.Empty(t, cache.data)
}
