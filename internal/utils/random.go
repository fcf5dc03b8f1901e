package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	mathRand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IDGenerator provides centralized ID generation functionality
type IDGenerator struct {
	mu     sync.Mutex
	random *mathRand.Rand
}

// NewIDGenerator creates a new ID generator
func NewIDGenerator() *IDGenerator {
	return &IDGenerator{
		// #nosec G404 - math/rand only backs the fallback when crypto/rand fails
		random: mathRand.New(mathRand.NewSource(time.Now().UnixNano())),
	}
}

// GenerateRequestID generates a unique request ID (16 hex characters)
func (g *IDGenerator) GenerateRequestID() string {
	return g.generateHex(8)
}

// GenerateChatCompletionID generates an OpenAI-compatible chat completion ID
func (g *IDGenerator) GenerateChatCompletionID() string {
	return fmt.Sprintf("chatcmpl-%s", g.generateHex(16))
}

func (g *IDGenerator) generateHex(byteLength int) string {
	bytes := make([]byte, byteLength)
	if _, err := rand.Read(bytes); err != nil {
		g.mu.Lock()
		for i := range bytes {
			bytes[i] = byte(g.random.Intn(256))
		}
		g.mu.Unlock()
	}
	return hex.EncodeToString(bytes)
}

var globalIDGenerator = NewIDGenerator()

// GenerateRequestID generates a unique request ID using the global generator
func GenerateRequestID() string {
	return globalIDGenerator.GenerateRequestID()
}

// GenerateChatCompletionID generates a chat completion ID using the global generator
func GenerateChatCompletionID() string {
	return globalIDGenerator.GenerateChatCompletionID()
}

// GeneratePlaceholderID returns a random UUID used where the upstream did not
// hand out an identifier of its own.
func GeneratePlaceholderID() string {
	return uuid.NewString()
}
