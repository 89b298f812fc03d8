package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/orderdesk/orderdesk/params"
	"github.com/orderdesk/orderdesk/pkg/api"
	"github.com/orderdesk/orderdesk/pkg/book"
	"github.com/orderdesk/orderdesk/pkg/events"
	"github.com/orderdesk/orderdesk/pkg/storage"
	"github.com/orderdesk/orderdesk/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	store, err := storage.Open(cfg.Store.Path, cfg.Store.PageSize)
	if err != nil {
		sugar.Fatalw("store_open_failed", "path", cfg.Store.Path, "err", err)
	}
	defer store.Close()
	sugar.Infow("store_opened", "path", cfg.Store.Path, "page_size", cfg.Store.PageSize)

	orders := book.NewManager(store, logger)
	engine := book.NewEngine(store, logger)

	var publisher *events.TradePublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = events.NewTradePublisher(cfg.Kafka.Brokers, cfg.Kafka.TradeTopic, logger)
		if err != nil {
			sugar.Fatalw("trade_publisher_failed", "brokers", cfg.Kafka.Brokers, "err", err)
		}
		defer publisher.Close()
		sugar.Infow("trade_publisher_started", "topic", cfg.Kafka.TradeTopic)
	}

	server := api.NewServer(orders, engine, publisher, cfg.HTTP.AllowedOrigins, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.HTTP.Addr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		sugar.Infow("shutting_down", "signal", sig.String())
	case err := <-errCh:
		sugar.Errorw("server_failed", "err", err)
	}
}
