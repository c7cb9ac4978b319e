package orders

import "context"

// Batas antara "harus atomik" dan "best effort" dibuat eksplisit: operasi
// transaksional mengembalikan daftar Effect, dan caller mengeksekusinya
// SETELAH commit. Effect yang gagal di-log lalu ditelan; order yang sudah
// commit tidak boleh kelihatan gagal gara-gara side effect.

type NotificationType string

const (
	NotifNewOrder     NotificationType = "new_order"
	NotifStatusChange NotificationType = "status_change"
	NotifPaymentProof NotificationType = "payment_proof"
	NotifCancelled    NotificationType = "order_cancelled"
)

type NotificationIntent struct {
	UserID string
	Title  string
	Body   string
	Type   NotificationType
	Link   string
}

type Effect struct {
	Event         Event
	Channels      []string // target fan-out: channel user/shop
	Notifications []NotificationIntent
}

// EventPublisher: fan-out realtime lintas proses. Fire-and-forget, tidak
// boleh blocking atau menggagalkan operasi bisnis. Payload = envelope Event
// yang sudah di-marshal.
type EventPublisher interface {
	Publish(channels []string, payload []byte)
}

// LifecycleStream: publish durable ke broker (kafka). Juga fire-and-forget.
type LifecycleStream interface {
	Publish(key []byte, eventType string, payload []byte)
}

// NotificationSink: persist record notifikasi + push best-effort.
type NotificationSink interface {
	Notify(ctx context.Context, n NotificationIntent)
}
