package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-marketplace-orders.git/internal/config"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/fanout"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/httpx"
	kafkax "github.com/ariefcatur/go-marketplace-orders.git/internal/kafka"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/notify"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/orders"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/postgres"
	"github.com/ariefcatur/go-marketplace-orders.git/internal/redisx"
	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
)

// lifecycleStream menjembatani effects dispatcher ke producer kafka.
type lifecycleStream struct{ p *kafkax.Producer }

func (s lifecycleStream) Publish(key []byte, eventType string, payload []byte) {
	s.p.Publish(key, payload,
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PGMaxConns)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()
	store := &orders.PostgresStore{DB: db}

	// Redis: broker fan-out + cache status
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Hub fan-out: join channel toko dicek ke tabel shops
	owns := func(ctx context.Context, userID, shopID string) (bool, error) {
		shop, err := store.ShopByID(ctx, shopID)
		if err != nil {
			if errors.Is(err, orders.ErrShopNotFound) {
				return false, nil
			}
			return false, err
		}
		return shop.OwnerID == userID, nil
	}
	hub := fanout.NewHub(owns, &fanout.RedisBroker{RDB: rdb})
	go hub.Run(ctx)

	// Kafka producer: stream lifecycle durable
	prod := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderLifecycle, 1024)
	prod.Start(ctx)

	// Notification sink
	notifyStore := &notify.PostgresStore{DB: db}
	sink := &notify.Sink{Store: notifyStore, Pusher: notify.NewHTTPPusher()}

	svc := &orders.Service{
		Store:     store,
		Producer:  cfg.ServiceName,
		Publisher: hub,
		Stream:    lifecycleStream{p: prod},
		Sink:      sink,
	}

	router := httpx.NewRouter()
	oh := &httpx.OrdersHandler{Service: svc, NotifyStore: notifyStore, Cache: redisx.Cache{RDB: rdb}}
	oh.Register(router)
	sh := &httpx.StreamHandler{Hub: hub}
	sh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	cancel()          // stop loop producer + relay hub
	prod.WaitClosed() // drain
}
