package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

var ErrForbiddenChannel = errors.New("not allowed to join this channel")

// OwnershipFunc mengonfirmasi userID memang pemilik shopID. Dipanggil
// sebelum join channel toko; join tanpa bukti kepemilikan ditolak eksplisit,
// bukan diabaikan diam-diam.
type OwnershipFunc func(ctx context.Context, userID, shopID string) (bool, error)

// Broker adalah medium broadcast bersama antar proses server. Boleh nil:
// hub tetap jalan, fan-out jadi lokal proses saja (degraded, bukan fatal).
type Broker interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// wireMessage adalah bentuk event di broker. Origin dipakai untuk skip
// pesan dari proses sendiri (sudah dikirim lokal saat publish). Payload
// bertipe []byte (base64 di wire) karena hub tidak mensyaratkan payload
// berupa JSON.
type wireMessage struct {
	Origin   string   `json:"origin"`
	Channels []string `json:"channels"`
	Payload  []byte   `json:"payload"`
}

type Subscriber struct {
	UserID string
	ch     chan []byte
}

// C: channel baca untuk session (SSE/WS writer di layer atas).
func (s *Subscriber) C() <-chan []byte { return s.ch }

// Hub adalah registry subscription eksplisit: siapa terhubung ke channel
// apa, dimiliki satu tempat. Join/leave/publish = operasi murni atas
// registry ini.
type Hub struct {
	id     string // identitas proses, buat filter echo dari broker
	owns   OwnershipFunc
	broker Broker
	ready  chan struct{} // ditutup setelah Run selesai mencoba subscribe

	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	members  map[*Subscriber][]string
}

func NewHub(owns OwnershipFunc, broker Broker) *Hub {
	return &Hub{
		id:       uuid.NewString(),
		owns:     owns,
		broker:   broker,
		ready:    make(chan struct{}),
		channels: map[string]map[*Subscriber]struct{}{},
		members:  map[*Subscriber][]string{},
	}
}

// Connect mendaftarkan satu session. Session otomatis masuk channel privat
// user-nya sendiri; channel lain harus diminta lewat JoinShop.
func (h *Hub) Connect(userID string) *Subscriber {
	sub := &Subscriber{UserID: userID, ch: make(chan []byte, 32)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.join(sub, UserChannel(userID))
	return sub
}

// JoinShop: hanya pemilik toko yang boleh masuk channel toko.
func (h *Hub) JoinShop(ctx context.Context, sub *Subscriber, shopID string) error {
	ok, err := h.owns(ctx, sub.UserID, shopID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbiddenChannel
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.join(sub, ShopChannel(shopID))
	return nil
}

func (h *Hub) join(sub *Subscriber, channel string) {
	set, ok := h.channels[channel]
	if !ok {
		set = map[*Subscriber]struct{}{}
		h.channels[channel] = set
	}
	set[sub] = struct{}{}
	h.members[sub] = append(h.members[sub], channel)
}

// Disconnect melepas session dari semua channel dan menutup channel kirim.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.members[sub] {
		if set, ok := h.channels[ch]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	delete(h.members, sub)
	close(sub.ch)
}

// Publish mengirim payload ke semua subscriber channel tsb: lokal langsung,
// lintas proses lewat broker. Fire-and-forget: tidak blocking, tidak pernah
// menggagalkan operasi bisnis pemicunya.
func (h *Hub) Publish(channels []string, payload []byte) {
	h.deliverLocal(channels, payload)

	if h.broker == nil {
		return
	}
	wire, err := json.Marshal(wireMessage{Origin: h.id, Channels: channels, Payload: payload})
	if err != nil {
		log.Printf("fanout: marshal wire message: %v", err)
		return
	}
	go func() {
		if err := h.broker.Publish(context.Background(), wire); err != nil {
			// broker mati -> degrade ke lokal saja, jangan gagalkan apa pun
			log.Printf("fanout: broker publish failed, local-only delivery: %v", err)
		}
	}()
}

func (h *Hub) deliverLocal(channels []string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range channels {
		for sub := range h.channels[ch] {
			select {
			case sub.ch <- payload:
			default:
				// subscriber lambat: drop, best-effort
			}
		}
	}
}

// Ready ditutup setelah Run selesai mencoba subscribe ke broker (sukses
// maupun gagal). Publisher yang butuh kepastian relay lintas proses sudah
// aktif bisa menunggu channel ini dulu.
func (h *Hub) Ready() <-chan struct{} { return h.ready }

// Run menjalankan loop relay dari broker: event yang dipublish proses lain
// diantar ke subscriber lokal. Return saat ctx selesai. Broker gagal
// subscribe -> log warning dan jalan lokal saja. Panggil sekali per hub.
func (h *Hub) Run(ctx context.Context) {
	if h.broker == nil {
		close(h.ready)
		return
	}
	msgs, err := h.broker.Subscribe(ctx)
	close(h.ready)
	if err != nil {
		log.Printf("fanout: broker subscribe failed, local-only delivery: %v", err)
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case b, ok := <-msgs:
			if !ok {
				return
			}
			var wm wireMessage
			if err := json.Unmarshal(b, &wm); err != nil {
				log.Printf("fanout: bad wire message: %v", err)
				continue
			}
			if wm.Origin == h.id {
				continue // sudah diantar lokal saat publish
			}
			h.deliverLocal(wm.Channels, wm.Payload)
		}
	}
}
