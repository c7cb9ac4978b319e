package statuscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/go-marketplace-orders.git/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/redisx"
	kafkago "github.com/segmentio/kafka-go"
)

// Cache: operasi redis yang dibutuhkan proyeksi. redisx.Cache memenuhinya.
type Cache interface {
	Exists(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Service memproyeksikan stream lifecycle kafka ke cache status order di
// redis, supaya GET status tidak selalu mampir ke postgres. Cache murni
// optimasi baca; DB tetap sumber kebenaran. Entry menyertakan buyer_id dan
// shop_id supaya layer HTTP bisa cek kepemilikan tanpa mampir ke DB.
type Service struct {
	Cache       Cache
	ServiceName string
}

// HandleLifecycleEvent dipasang sebagai handler consumer. Return error =
// offset tidak di-commit, pesan di-redeliver.
func (s *Service) HandleLifecycleEvent(ctx context.Context, m kafkago.Message) error {
	var evt orders.Event
	if err := kafkax.UnmarshalEnvelope(m.Value, &evt); err != nil {
		return err
	}
	if evt.CorrelationID == "" {
		return nil // bukan event order (mis. stock write-off), skip
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, evt.EventID)
	seen, err := s.Cache.Exists(ctx, dkey)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderEventPayload](evt.Payload)
	if err != nil {
		return err
	}

	entry, err := json.Marshal(map[string]any{
		"order_id":        p.OrderID,
		"buyer_id":        p.BuyerID,
		"shop_id":         p.ShopID,
		"status":          p.Status,
		"payment_status":  p.PaymentStatus,
		"delivery_status": p.DeliveryStatus,
		"updated_at":      evt.OccurredAt,
	})
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, p.OrderID)
	if err := s.Cache.Set(ctx, key, entry, redisx.TTLStatusCache); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	// marker dedup baru di-set SETELAH proyeksi sukses: gagal di tengah
	// berarti redelivery masih diproses, bukan di-drop permanen
	_ = s.Cache.Set(ctx, dkey, []byte("1"), redisx.TTLDedup)
	return nil
}
