package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders.git/internal/config"
	kafkax "github.com/ariefcatur/go-marketplace-orders.git/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/redisx"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/statuscache"
	"github.com/joho/godotenv"
)

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

// Worker proyeksi: consume stream lifecycle, isi cache status order di
// redis. API tetap jalan tanpa worker ini; GET status cuma jadi lebih
// sering fallback ke DB.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &statuscache.Service{
		Cache:       redisx.Cache{RDB: rdb},
		ServiceName: cfg.ServiceName + "-statuscache",
	}

	group := getenv("STATUSCACHE_GROUP", "statuscache-svc")
	workers := mustAtoi(os.Getenv("STATUSCACHE_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, orders.TopicOrderLifecycle, workers)

	go func() {
		log.Printf("statuscache consumer started: group=%s topic=%s workers=%d",
			group, orders.TopicOrderLifecycle, workers)
		if err := cons.Start(ctx, svc.HandleLifecycleEvent); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
}
