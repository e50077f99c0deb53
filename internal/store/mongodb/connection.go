package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// ConnectOptions tunes the storefront's client pool. Zero values fall back
// to the driver defaults below.
type ConnectOptions struct {
	URI                    string
	Database               string
	AppName                string
	MaxPoolSize            uint64
	MinPoolSize            uint64
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

const (
	defaultConnectTimeout         = 10 * time.Second
	defaultServerSelectionTimeout = 5 * time.Second
)

func clientOptions(o ConnectOptions) *options.ClientOptions {
	connectTimeout := o.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	selectionTimeout := o.ServerSelectionTimeout
	if selectionTimeout <= 0 {
		selectionTimeout = defaultServerSelectionTimeout
	}

	opts := options.Client().
		ApplyURI(o.URI).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(selectionTimeout).
		SetMinPoolSize(o.MinPoolSize)
	if o.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(o.MaxPoolSize)
	}
	if o.AppName != "" {
		opts.SetAppName(o.AppName)
	}
	return opts
}

// ConnectMongoDB opens the catalog and order database and checks the
// primary is reachable before the storefront starts serving.
func ConnectMongoDB(ctx context.Context, o ConnectOptions) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, clientOptions(o))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(o.Database), nil
}
