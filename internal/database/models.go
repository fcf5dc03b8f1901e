package database

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UsageRecord is one completed request in the usage ledger.
type UsageRecord struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id"`

	RequestID string `bson:"request_id" json:"request_id"`
	Endpoint  string `bson:"endpoint" json:"endpoint"`
	Model     string `bson:"model" json:"model"`

	// Conversation context
	ConversationType string `bson:"conversation_type,omitempty" json:"conversation_type,omitempty"`
	SessionSource    string `bson:"session_source,omitempty" json:"session_source,omitempty"`
	ImageCount       int    `bson:"image_count,omitempty" json:"image_count,omitempty"`

	// Streaming details
	IsStreaming  bool `bson:"is_streaming" json:"is_streaming"`
	StreamChunks int  `bson:"stream_chunks,omitempty" json:"stream_chunks,omitempty"`

	// Token usage (estimated)
	PromptTokens     int `bson:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int `bson:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int `bson:"total_tokens" json:"total_tokens"`

	StatusCode int    `bson:"status_code" json:"status_code"`
	ErrorType  string `bson:"error_type,omitempty" json:"error_type,omitempty"`
	DurationMs int64  `bson:"duration_ms" json:"duration_ms"`

	ClientIP    string    `bson:"client_ip,omitempty" json:"client_ip,omitempty"`
	Environment string    `bson:"environment,omitempty" json:"environment,omitempty"`
	RequestedAt time.Time `bson:"requested_at" json:"requested_at"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
}

// ModelUsage aggregates the ledger per model.
type ModelUsage struct {
	Model            string  `bson:"_id" json:"model"`
	Requests         int64   `bson:"requests" json:"requests"`
	Errors           int64   `bson:"errors" json:"errors"`
	PromptTokens     int64   `bson:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int64   `bson:"completion_tokens" json:"completion_tokens"`
	AvgDurationMs    float64 `bson:"avg_duration_ms" json:"avg_duration_ms"`
}
