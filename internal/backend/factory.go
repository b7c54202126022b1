package backend

import (
	"context"
	"errors"
	"fmt"

	"ledgerbook/internal/api"
	"ledgerbook/internal/credentials"
	"ledgerbook/internal/events"
	"ledgerbook/internal/log"
	"ledgerbook/internal/offline"
	"ledgerbook/internal/ports"
	"ledgerbook/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	kv, closeKV, err := f.openStorage(config.StoragePath)
	if err != nil {
		return nil, err
	}
	creds := credentials.NewManager(kv)

	var gw ports.Gateway
	switch config.Type {
	case RemoteBackend:
		gw, err = f.createRemoteBackend(config, creds)
	case OfflineBackend:
		gw = offline.New(kv, f.logger)
		f.logger.InfoContext(ctx, "Initialized offline backend", log.FieldBackend, config.Type.String())
	default:
		err = fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		_ = closeKV()
		return nil, err
	}

	publisher := f.createPublisher(config)

	return &BackendResult{
		Gateway:     gw,
		Credentials: creds,
		Storage:     kv,
		Publisher:   publisher,
		Cleanup: func() error {
			return errors.Join(publisher.Close(), closeKV())
		},
	}, nil
}

func (f *DefaultFactory) openStorage(path string) (storage.KV, CleanupFunc, error) {
	logger := f.logger.WithComponent(log.ComponentStorage)
	if path == "" {
		logger.Debug("Using in-memory storage")
		return storage.NewMemory(), func() error { return nil }, nil
	}
	kv, err := storage.OpenSQLite(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local storage: %w", err)
	}
	logger.Debug("Opened local storage", "db_path", path)
	return kv, kv.Close, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config, creds *credentials.Manager) (ports.Gateway, error) {
	opts := []api.Option{api.WithLogger(f.logger), api.WithTimeout(config.RequestTimeout)}
	if config.Navigator != nil {
		opts = append(opts, api.WithNavigator(config.Navigator))
	}
	client, err := api.New(config.APIBaseURL, creds, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}
	f.logger.Info("Initialized remote backend", log.FieldURL, config.APIBaseURL)
	return client, nil
}

// createPublisher connects lazily, so an unreachable broker never blocks
// startup.
func (f *DefaultFactory) createPublisher(config Config) events.Publisher {
	if config.AMQPURL == "" {
		return events.Nop{}
	}
	routingKey := config.AMQPRoutingKey
	if routingKey == "" {
		routingKey = "ledger.events"
	}
	f.logger.Info("Ledger events enabled",
		"exchange", config.AMQPExchange,
		"routing_key", routingKey)
	return events.NewAMQPPublisher(config.AMQPURL, config.AMQPExchange, routingKey, f.logger)
}
