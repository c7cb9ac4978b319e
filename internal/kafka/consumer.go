package kafka

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler return nil hanya jika proses sukses dan offset boleh di-commit.
type Handler func(ctx context.Context, m kafka.Message) error

// Consumer: reader satu topic + pool worker. Commit offset manual per
// message setelah handler sukses.
type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	// satu channel per worker; pesan di-shard berdasarkan key supaya event
	// dengan key sama (satu order) selalu diproses worker yang sama dan
	// urutan per key tidak teracak ulang oleh pool
	shards := make([]chan kafka.Message, c.workers)
	errs := make(chan error, c.workers)
	var wg sync.WaitGroup
	for i := range shards {
		shards[i] = make(chan kafka.Message, 256)
		wg.Add(1)
		go func(jobs <-chan kafka.Message) {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					errs <- err
					continue
				}
				if err := c.r.CommitMessages(ctx, m); err != nil {
					errs <- err
				}
			}
		}(shards[i])
	}
	closeShards := func() {
		for _, ch := range shards {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.ReadMessage(ctx)
		if err != nil {
			closeShards()
			select {
			case <-ctx.Done():
				return nil // shutdown normal, jangan berisik
			default:
				return err
			}
		}
		select {
		case shards[shardFor(m.Key, len(shards))] <- m:
		case <-ctx.Done():
			closeShards()
			return nil
		}

		// drain error non-blocking biar dispatcher tidak deadlock
		select {
		case e := <-errs:
			log.Printf("kafka: worker error: %v", e)
			time.Sleep(200 * time.Millisecond) // backoff ringan
		default:
		}
	}
}

// shardFor memetakan key ke index worker secara deterministik.
func shardFor(key []byte, n int) int {
	if n <= 1 || len(key) == 0 {
		return 0
	}
	d := fnv.New32a()
	_, _ = d.Write(key)
	return int(d.Sum32() % uint32(n))
}
