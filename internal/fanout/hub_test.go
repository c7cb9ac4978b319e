package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ownerIs(owner, shop string) OwnershipFunc {
	return func(ctx context.Context, userID, shopID string) (bool, error) {
		return userID == owner && shopID == shop, nil
	}
}

func recv(t *testing.T, sub *Subscriber) []byte {
	t.Helper()
	select {
	case b := <-sub.C():
		return b
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestHub_UserChannelAutoJoin(t *testing.T) {
	hub := NewHub(ownerIs("seller-1", "shop-1"), nil)

	sub := hub.Connect("buyer-1")
	defer hub.Disconnect(sub)
	other := hub.Connect("buyer-2")
	defer hub.Disconnect(other)

	hub.Publish([]string{UserChannel("buyer-1")}, []byte(`{"n":1}`))

	assert.Equal(t, []byte(`{"n":1}`), recv(t, sub))
	select {
	case b := <-other.C():
		t.Fatalf("buyer-2 must not receive buyer-1 events, got %s", b)
	default:
	}
}

func TestHub_ShopJoinRequiresOwnership(t *testing.T) {
	hub := NewHub(ownerIs("seller-1", "shop-1"), nil)

	owner := hub.Connect("seller-1")
	defer hub.Disconnect(owner)
	require.NoError(t, hub.JoinShop(context.Background(), owner, "shop-1"))

	// session valid tapi bukan pemilik: ditolak eksplisit
	intruder := hub.Connect("buyer-1")
	defer hub.Disconnect(intruder)
	err := hub.JoinShop(context.Background(), intruder, "shop-1")
	assert.ErrorIs(t, err, ErrForbiddenChannel)

	hub.Publish([]string{ShopChannel("shop-1")}, []byte(`{"order":"x"}`))
	assert.Equal(t, []byte(`{"order":"x"}`), recv(t, owner))
	select {
	case b := <-intruder.C():
		t.Fatalf("non-owner must not receive shop events, got %s", b)
	default:
	}
}

func TestHub_OwnershipLookupErrorPropagates(t *testing.T) {
	boom := errors.New("lookup down")
	hub := NewHub(func(ctx context.Context, userID, shopID string) (bool, error) {
		return false, boom
	}, nil)
	sub := hub.Connect("seller-1")
	defer hub.Disconnect(sub)

	err := hub.JoinShop(context.Background(), sub, "shop-1")
	assert.ErrorIs(t, err, boom)
}

func TestHub_DisconnectStopsDelivery(t *testing.T) {
	hub := NewHub(ownerIs("seller-1", "shop-1"), nil)
	sub := hub.Connect("buyer-1")
	hub.Disconnect(sub)

	// tidak boleh panic atau deliver ke channel yang sudah ditutup
	hub.Publish([]string{UserChannel("buyer-1")}, []byte("late"))
	_, open := <-sub.C()
	assert.False(t, open)
}

func TestHub_SlowSubscriberDropsNotBlocks(t *testing.T) {
	hub := NewHub(ownerIs("seller-1", "shop-1"), nil)
	sub := hub.Connect("buyer-1")
	defer hub.Disconnect(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			hub.Publish([]string{UserChannel("buyer-1")}, []byte("e"))
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

// memBroker mensimulasikan redis pub/sub antar dua proses dalam satu test.
type memBroker struct {
	mu   sync.Mutex
	subs []chan []byte
}

func (b *memBroker) Publish(ctx context.Context, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- payload:
		default:
		}
	}
	return nil
}

func (b *memBroker) Subscribe(ctx context.Context) (<-chan []byte, error) {
	ch := make(chan []byte, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, ch)
	return ch, nil
}

func TestHub_CrossProcessDeliveryViaBroker(t *testing.T) {
	broker := &memBroker{}
	hubA := NewHub(ownerIs("seller-1", "shop-1"), broker)
	hubB := NewHub(ownerIs("seller-1", "shop-1"), broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hubA.Run(ctx)
	go hubB.Run(ctx)
	// tunggu relay kedua proses aktif sebelum publish
	<-hubA.Ready()
	<-hubB.Ready()

	subA := hubA.Connect("buyer-1")
	defer hubA.Disconnect(subA)
	subB := hubB.Connect("buyer-1")
	defer hubB.Disconnect(subB)

	// publish di proses A harus sampai ke subscriber proses B
	hubA.Publish([]string{UserChannel("buyer-1")}, []byte(`{"x":1}`))

	assert.Equal(t, []byte(`{"x":1}`), recv(t, subA))
	assert.Equal(t, []byte(`{"x":1}`), recv(t, subB))

	// dan tidak double-deliver di proses asal (origin difilter)
	select {
	case b := <-subA.C():
		t.Fatalf("origin process delivered twice: %s", b)
	case <-time.After(100 * time.Millisecond):
	}
}

// payload tidak harus JSON: wire format broker tidak boleh menolaknya.
func TestHub_BrokerCarriesArbitraryPayload(t *testing.T) {
	broker := &memBroker{}
	hubA := NewHub(ownerIs("seller-1", "shop-1"), broker)
	hubB := NewHub(ownerIs("seller-1", "shop-1"), broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hubA.Run(ctx)
	go hubB.Run(ctx)
	<-hubA.Ready()
	<-hubB.Ready()

	subB := hubB.Connect("buyer-1")
	defer hubB.Disconnect(subB)

	raw := []byte("plain text, bukan JSON")
	hubA.Publish([]string{UserChannel("buyer-1")}, raw)
	assert.Equal(t, raw, recv(t, subB))
}

type failingBroker struct{}

func (failingBroker) Publish(ctx context.Context, payload []byte) error {
	return errors.New("broker unavailable")
}

func (failingBroker) Subscribe(ctx context.Context) (<-chan []byte, error) {
	return nil, errors.New("broker unavailable")
}

func TestHub_DegradesToLocalWhenBrokerDown(t *testing.T) {
	hub := NewHub(ownerIs("seller-1", "shop-1"), failingBroker{})
	go hub.Run(context.Background()) // subscribe gagal -> lanjut lokal
	<-hub.Ready()

	sub := hub.Connect("buyer-1")
	defer hub.Disconnect(sub)

	// publish tetap jalan dan deliver lokal, tanpa error ke caller
	hub.Publish([]string{UserChannel("buyer-1")}, []byte("local"))
	assert.Equal(t, []byte("local"), recv(t, sub))
}
