package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-shop-orders/internal/capacity"
	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/events"
	"github.com/ariefcatur/go-shop-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/memstore"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.ServiceName, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stores
	var (
		orderStore    orders.Store
		capacityStore capacity.Store
	)
	switch cfg.StoreBackend {
	case config.BackendMemory:
		st := memstore.New()
		if err := seed(ctx, st, cfg.Location()); err != nil {
			log.WithError(err).Fatal("seed memory store")
		}
		orderStore, capacityStore = st, st
		log.Warn("using in-memory store, data is lost on exit")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{
			MaxConns:    int32(cfg.DBMaxConns),
			LockTimeout: cfg.DBLockTimeout,
		})
		if err != nil {
			log.WithError(err).Fatal("db connect")
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("db migrate")
		}
		orderStore, capacityStore = &orders.Repo{DB: db}, &capacity.Repo{DB: db}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicOrderPlaced, 1024, log)
	prod.Start(ctx)

	// Services & handlers
	router := httpx.NewRouter(log)
	(&httpx.OrdersHandler{
		Orders: &orders.Service{
			Store:    orderStore,
			Location: cfg.Location(),
			Log:      log.WithField("component", "orders"),
		},
		Idem:     redisx.Idempotency{Client: rdb},
		Producer: prod,
		Service:  cfg.ServiceName,
		Log:      log,
	}).Register(router)
	(&httpx.CapacityHandler{
		Capacity: &capacity.Service{
			Store: capacityStore,
			Limits: capacity.Limits{
				capacity.KindCustomCake: cfg.CustomCakeDailyLimit,
				capacity.KindDIY:        cfg.DIYSlotLimit,
			},
			Log: log.WithField("component", "capacity"),
		},
		Log: log,
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	if err := srv.Shutdown(ctx2); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	prod.Close()      // flush queued events
	prod.WaitClosed() // drain
}

