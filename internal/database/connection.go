package database

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/aashari/go-onemin-gateway/internal/logger"
)

// Connection holds the MongoDB client and the ledger database.
type Connection struct {
	Client   *mongo.Client
	Database *mongo.Database
	Config   Config
}

// Connect dials MongoDB, pings it and ensures the ledger indexes exist.
// Index creation failures are logged but do not fail the connection.
func Connect(ctx context.Context, cfg Config) (*Connection, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	if cfg.AppName != "" {
		clientOptions.SetAppName(cfg.AppName)
	}

	logger.InfoCtx(ctx, "Connecting to MongoDB",
		"database", cfg.Database,
		"uri", cfg.MaskedURI(),
		"stage", logger.LogStages.Initialization)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	conn := &Connection{
		Client:   client,
		Database: client.Database(cfg.Database),
		Config:   cfg,
	}

	if err := conn.createIndexes(ctx); err != nil {
		logger.WarnCtx(ctx, "Failed to create usage ledger indexes",
			"error", err.Error(),
			"stage", logger.LogStages.Initialization)
	}

	logger.InfoCtx(ctx, "Connected to MongoDB",
		"database", cfg.Database,
		"collection", cfg.Collection,
		"stage", logger.LogStages.Initialization)
	return conn, nil
}

// Collection is the usage ledger collection.
func (c *Connection) Collection() *mongo.Collection {
	return c.Database.Collection(c.Config.Collection)
}

// Disconnect closes the client.
func (c *Connection) Disconnect(ctx context.Context) error {
	if c.Client == nil {
		return nil
	}
	return c.Client.Disconnect(ctx)
}

// HealthCheck pings the primary.
func (c *Connection) HealthCheck(ctx context.Context) error {
	if c.Client == nil {
		return fmt.Errorf("MongoDB client is nil")
	}
	if err := c.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("MongoDB ping failed: %w", err)
	}
	return nil
}

func (c *Connection) createIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("created_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "request_id", Value: 1}},
			Options: options.Index().SetName("request_id"),
		},
		{
			Keys:    bson.D{{Key: "model", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("model_created_at_desc"),
		},
		{
			Keys:    bson.D{{Key: "status_code", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("status_code_created_at_desc"),
		},
	}

	if _, err := c.Collection().Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", c.Config.Collection, err)
	}
	return nil
}
