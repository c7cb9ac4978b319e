package notify

import (
	"context"
	"log"
	"time"

	"github.com/ariefcatur/go-marketplace-orders.git/internal/orders"
	"github.com/google/uuid"
)

// Notification adalah record mailbox yang dipersist per user.
type Notification struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Type      orders.NotificationType `json:"type"`
	Link      string                  `json:"link"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

type Store interface {
	Insert(ctx context.Context, n Notification) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)

	// PushEndpoint: endpoint push terdaftar milik user, "" kalau tidak ada.
	PushEndpoint(ctx context.Context, userID string) (string, error)
}

type Pusher interface {
	Push(ctx context.Context, endpoint, title, body string) error
}

// Sink: persist record + push best-effort. Gagal di sini cuma di-log,
// tidak di-retry, dan tidak pernah menggagalkan aksi lifecycle pemicunya.
type Sink struct {
	Store  Store
	Pusher Pusher
}

func (s *Sink) Notify(ctx context.Context, n orders.NotificationIntent) {
	rec := Notification{
		ID:        uuid.NewString(),
		UserID:    n.UserID,
		Title:     n.Title,
		Body:      n.Body,
		Type:      n.Type,
		Link:      n.Link,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Store.Insert(ctx, rec); err != nil {
		log.Printf("notify: persist for user %s: %v", n.UserID, err)
		return
	}

	if s.Pusher == nil {
		return
	}
	endpoint, err := s.Store.PushEndpoint(ctx, n.UserID)
	if err != nil {
		log.Printf("notify: lookup push endpoint for user %s: %v", n.UserID, err)
		return
	}
	if endpoint == "" {
		return
	}
	if err := s.Pusher.Push(ctx, endpoint, n.Title, n.Body); err != nil {
		log.Printf("notify: push to user %s failed (not retried): %v", n.UserID, err)
	}
}
