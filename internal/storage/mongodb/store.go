// Package mongodb implements the exchange journal using MongoDB.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/grauwen/digikoppeling-wus-cxf/internal/storage"
)

// Journal implements storage.ExchangeJournal using MongoDB.
type Journal struct {
	client    *mongo.Client
	db        *mongo.Database
	exchanges *mongo.Collection
}

// Config holds MongoDB connection settings.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// NewJournal connects to MongoDB and prepares the exchange collection.
func NewJournal(ctx context.Context, cfg *Config) (*Journal, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)
	collection := cfg.Collection
	if collection == "" {
		collection = "exchanges"
	}

	j := &Journal{
		client:    client,
		db:        db,
		exchanges: db.Collection(collection),
	}

	if err := j.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}
	return j, nil
}

func (j *Journal) createIndexes(ctx context.Context) error {
	_, err := j.exchanges.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "message_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "outcome", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "profile_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating exchange indexes: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (j *Journal) Close(ctx context.Context) error {
	return j.client.Disconnect(ctx)
}

// Ping verifies database connectivity.
func (j *Journal) Ping(ctx context.Context) error {
	return j.client.Ping(ctx, nil)
}

// Record appends one exchange record.
func (j *Journal) Record(ctx context.Context, rec storage.ExchangeRecord) error {
	_, err := j.exchanges.InsertOne(ctx, rec)
	return err
}

// Find returns the most recent record for a message id.
func (j *Journal) Find(ctx context.Context, messageID string) (*storage.ExchangeRecord, error) {
	var rec storage.ExchangeRecord
	err := j.exchanges.FindOne(ctx,
		bson.M{"message_id": messageID},
		options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}}),
	).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListExpired returns records of expired exchanges, newest first.
func (j *Journal) ListExpired(ctx context.Context, limit int) ([]storage.ExchangeRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := j.exchanges.Find(ctx, bson.M{"outcome": storage.OutcomeExpired}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []storage.ExchangeRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
