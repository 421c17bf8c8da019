package backend

import (
	"context"

	"fintrack/internal/amqp"
	"fintrack/internal/ledger"
	"fintrack/internal/services"
)

// Persister is a ledger persistence collaborator the process can health
// check and release.
type Persister interface {
	ledger.Persister
	Ping(ctx context.Context) error
	Close() error
}

type CleanupFunc func() error

// BackendResult holds what the factory built. Events is nil when no broker
// is configured or reachable.
type BackendResult struct {
	Persister Persister
	Events    *amqp.Client
	Cleanup   CleanupFunc
}

// Publisher returns Events as a services.EventPublisher, or nil without one.
func (r *BackendResult) Publisher() services.EventPublisher {
	if r.Events == nil {
		return nil
	}
	return r.Events
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// Memory
	DataDirectory string

	// SQLite
	SQLiteDBPath string

	// PostgreSQL
	DatabaseURL string

	// AMQP, optional for every backend
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

type BackendType string

const (
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
	PostgresBackend BackendType = "postgres"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, PostgresBackend:
		return true
	default:
		return false
	}
}
