// database/connection.go
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/feedmill/gdeltflow/config"
	"github.com/feedmill/gdeltflow/models"
)

var (
	Client *mongo.Client
	Store  *mongo.Database
)

// InitStore connects the document store client and pings it to verify the
// server is reachable before any pipeline work starts.
func InitStore(cfg config.MongoConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(25).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to open store connection: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background())
		return fmt.Errorf("failed to ping store: %w", err)
	}

	Client = client
	Store = client.Database(cfg.Database)
	log.Println("Successfully connected to the document store!")
	return nil
}

// CloseStore disconnects the store client. Typically called on application
// shutdown.
func CloseStore() {
	if Client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Client.Disconnect(ctx)
		log.Println("Store connection closed.")
	}
}

// Ping reports whether the store is still reachable. The realtime scheduler
// uses this to tell a transient write failure apart from a dead store.
func Ping(ctx context.Context) error {
	if Client == nil {
		return fmt.Errorf("store not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return Client.Ping(ctx, readpref.Primary())
}

// Collection returns the per-table collection handle.
func Collection(table models.Table) *mongo.Collection {
	return Store.Collection(table.Collection())
}
