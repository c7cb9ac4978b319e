package fanout

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisBroker meneruskan event antar proses lewat redis pub/sub. Delivery
// at-most-effort: redis pub/sub memang tidak menyimpan pesan, sesuai
// kontrak fan-out best-effort.
type RedisBroker struct {
	RDB *redis.Client
}

func (b *RedisBroker) Publish(ctx context.Context, payload []byte) error {
	return b.RDB.Publish(ctx, BrokerChannel, payload).Err()
}

func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan []byte, error) {
	sub := b.RDB.Subscribe(ctx, BrokerChannel)
	// Receive pertama memastikan subscribe beneran tersambung
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
