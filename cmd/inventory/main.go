package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/events"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/logging"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	service := cfg.ServiceName + "-inventory"
	log := logging.New(service, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	if cfg.StoreBackend != config.BackendPostgres {
		log.Fatal("stock watcher needs STORE_BACKEND=postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.Options{MaxConns: int32(cfg.DBMaxConns)})
	if err != nil {
		log.WithError(err).Fatal("db connect")
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, events.TopicStockLow, 1024, log)
	prod.Start(ctx)

	w := &inventory.Watcher{
		Stock:       &inventory.Repo{DB: db},
		Dedup:       redisx.Dedup{Client: rdb, Service: "inventory"},
		Producer:    prod,
		ServiceName: service,
		Threshold:   cfg.LowStockThreshold,
		Log:         log.WithField("component", "stock-watcher"),
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.InventoryGroup, events.TopicOrderPlaced, cfg.InventoryWorkers, log)
	done := make(chan struct{})
	go func() {
		defer close(done)
		log.WithFields(logrus.Fields{
			"group":   cfg.InventoryGroup,
			"topic":   events.TopicOrderPlaced,
			"workers": cfg.InventoryWorkers,
		}).Info("stock watcher started")
		if err := cons.Start(ctx, w.HandleOrderPlaced); err != nil {
			log.WithError(err).Error("consumer exit")
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down consumer...")
	cancel()
	<-done
	prod.Close()
	prod.WaitClosed()
}
