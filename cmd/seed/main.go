package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/store"
	"github.com/fjod/storefront/internal/store/backend"
	"github.com/rs/zerolog/log"
)

func main() {
	file := flag.String("file", "products.json", "JSON array of products to write")
	timeout := flag.Duration("timeout", time.Minute, "overall seeding timeout")
	flag.Parse()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Setup(cfg.AppName+"-seed", cfg.LogLevel)

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("cannot read products file")
	}
	products, err := store.DecodeProducts(data)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("invalid products file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	docs, err := backend.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open document store")
	}
	defer docs.Close(context.Background())

	if err := store.Seed(ctx, docs, products); err != nil {
		log.Error().Err(err).Msg("seeding failed")
		return
	}
	log.Info().Int("products", len(products)).Str("store", cfg.StoreBackend).Msg("catalog seeded")
}
