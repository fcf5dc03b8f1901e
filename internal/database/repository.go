package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// UsageStore persists usage records.
type UsageStore interface {
	Insert(ctx context.Context, record *UsageRecord) error
}

// UsageRepository writes the usage ledger and aggregates it per model.
type UsageRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewUsageRepository wraps conn's ledger collection.
func NewUsageRepository(conn *Connection) *UsageRepository {
	return &UsageRepository{collection: conn.Collection(), now: time.Now}
}

// Insert stores record, stamping CreatedAt.
func (r *UsageRepository) Insert(ctx context.Context, record *UsageRecord) error {
	record.CreatedAt = r.now()
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert usage record: %w", err)
	}
	return nil
}

// SummarizeByModel aggregates requests, errors and tokens per model since
// the given time.
func (r *UsageRepository) SummarizeByModel(ctx context.Context, since time.Time) ([]ModelUsage, error) {
	cursor, err := r.collection.Aggregate(ctx, summaryPipeline(since))
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate usage records: %w", err)
	}
	defer cursor.Close(ctx)

	var summary []ModelUsage
	if err := cursor.All(ctx, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode usage summary: %w", err)
	}
	return summary, nil
}

func summaryPipeline(since time.Time) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "created_at", Value: bson.D{{Key: "$gte", Value: since}}}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$model"},
			{Key: "requests", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "errors", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{"$status_code", 400}}}, 1, 0,
			}}}}}},
			{Key: "prompt_tokens", Value: bson.D{{Key: "$sum", Value: "$prompt_tokens"}}},
			{Key: "completion_tokens", Value: bson.D{{Key: "$sum", Value: "$completion_tokens"}}},
			{Key: "avg_duration_ms", Value: bson.D{{Key: "$avg", Value: "$duration_ms"}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "requests", Value: -1}}}},
	}
}
