// Package backend opens the document store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/store"
	fsstore "github.com/fjod/storefront/internal/store/firestore"
	"github.com/fjod/storefront/internal/store/mongodb"
	"github.com/rs/zerolog/log"
)

func Open(ctx context.Context, cfg config.Config) (store.DocumentStore, error) {
	switch cfg.StoreBackend {
	case "mongo":
		db, err := mongodb.ConnectMongoDB(ctx, mongoOptions(cfg))
		if err != nil {
			return nil, fmt.Errorf("connect to mongodb: %w", err)
		}
		s := mongodb.NewStore(db)
		if err := s.CreateIndexes(ctx); err != nil {
			return nil, fmt.Errorf("create mongodb indexes: %w", err)
		}
		log.Info().Str("uri", cfg.MongoURI).Str("db", cfg.MongoDBName).Msg("connected to MongoDB")
		return s, nil
	case "firestore":
		client, err := fsstore.NewClient(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("connect to firestore: %w", err)
		}
		log.Info().Str("project", cfg.FirestoreProjectID).Msg("connected to Firestore")
		return fsstore.NewStoreFS(client), nil
	case "memory":
		log.Warn().Msg("using in-memory document store, data is lost on restart")
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func mongoOptions(cfg config.Config) mongodb.ConnectOptions {
	return mongodb.ConnectOptions{
		URI:                    cfg.MongoURI,
		Database:               cfg.MongoDBName,
		AppName:                cfg.AppName,
		MaxPoolSize:            cfg.MongoMaxPoolSize,
		MinPoolSize:            cfg.MongoMinPoolSize,
		ConnectTimeout:         cfg.MongoConnectTimeout,
		ServerSelectionTimeout: cfg.MongoServerSelectionTimeout,
	}
}
