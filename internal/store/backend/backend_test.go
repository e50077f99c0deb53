package backend

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), config.Config{StoreBackend: "memory"})

	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, s)
}

func TestOpen_Unknown(t *testing.T) {
	_, err := Open(context.Background(), config.Config{StoreBackend: "sqlite"})

	assert.ErrorContains(t, err, "unknown store backend")
}

func TestMongoOptions_FromConfig(t *testing.T) {
	o := mongoOptions(config.Config{
		AppName:                     "storefront",
		MongoURI:                    "mongodb://db:27017",
		MongoDBName:                 "shop",
		MongoMaxPoolSize:            20,
		MongoMinPoolSize:            2,
		MongoConnectTimeout:         3 * time.Second,
		MongoServerSelectionTimeout: time.Second,
	})

	assert.Equal(t, "mongodb://db:27017", o.URI)
	assert.Equal(t, "shop", o.Database)
	assert.Equal(t, "storefront", o.AppName)
	assert.Equal(t, uint64(20), o.MaxPoolSize)
	assert.Equal(t, uint64(2), o.MinPoolSize)
	assert.Equal(t, 3*time.Second, o.ConnectTimeout)
	assert.Equal(t, time.Second, o.ServerSelectionTimeout)
}
