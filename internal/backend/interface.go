package backend

import (
	"context"
	"time"

	"ledgerbook/internal/api"
	"ledgerbook/internal/credentials"
	"ledgerbook/internal/events"
	"ledgerbook/internal/ports"
	"ledgerbook/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is everything a front-end needs to talk to a data source.
type BackendResult struct {
	Gateway     ports.Gateway
	Credentials *credentials.Manager
	Storage     storage.KV
	Publisher   events.Publisher
	Cleanup     CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// Local storage; empty keeps everything in memory.
	StoragePath string

	// Remote specific
	APIBaseURL     string
	RequestTimeout time.Duration
	Navigator      api.Navigator

	// Ledger events, optional
	AMQPURL        string
	AMQPExchange   string
	AMQPRoutingKey string
}

// BackendType represents the type of backend
type BackendType string

const (
	RemoteBackend  BackendType = "remote"
	OfflineBackend BackendType = "offline"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case RemoteBackend, OfflineBackend:
		return true
	default:
		return false
	}
}
