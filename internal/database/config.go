package database

import (
	"strings"
	"time"
)

// Config holds the MongoDB settings of the usage ledger.
type Config struct {
	// URI includes every connection detail including auth. Empty disables
	// the ledger.
	URI        string
	Database   string
	Collection string
	// AppName is reported to the server for connection tracking.
	AppName     string
	Environment string

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// QueueSize bounds the records waiting to be written.
	QueueSize int
}

// DefaultConfig fills in everything but the URI.
func DefaultConfig(uri string) Config {
	return Config{
		URI:            uri,
		Database:       "onemin_gateway",
		Collection:     "usage_records",
		AppName:        "onemin-gateway",
		Environment:    "development",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
		QueueSize:      1024,
	}
}

// Enabled reports whether a URI is configured.
func (c Config) Enabled() bool { return c.URI != "" }

// MaskedURI returns the URI with credentials replaced, for logging.
func (c Config) MaskedURI() string {
	at := strings.LastIndex(c.URI, "@")
	if at < 0 {
		return c.URI
	}
	scheme := strings.Index(c.URI, "//")
	if scheme < 0 || scheme > at {
		return c.URI
	}
	return c.URI[:scheme+2] + "***:***" + c.URI[at:]
}
