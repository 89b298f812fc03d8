package main

import (
	"context"
	"flag"
	"log"

	"github.com/orderdesk/orderdesk/params"
	"github.com/orderdesk/orderdesk/pkg/book"
	"github.com/orderdesk/orderdesk/pkg/loader"
	"github.com/orderdesk/orderdesk/pkg/storage"
	"github.com/orderdesk/orderdesk/pkg/util"
)

func main() {
	file := flag.String("file", "", "path to the order CSV file")
	flag.Parse()
	if *file == "" {
		log.Fatal("usage: loader -file orders.csv")
	}

	cfg := params.LoadFromEnv("")

	logger, err := util.NewLogger()
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

	orders := book.NewManager(store, logger)
	n, err := loader.New(orders, logger).LoadFile(context.Background(), *file)
	if err != nil {
		sugar.Fatalw("import_failed", "file", *file, "orders_written", n, "err", err)
	}
	sugar.Infow("import_complete", "file", *file, "orders_written", n)
}
