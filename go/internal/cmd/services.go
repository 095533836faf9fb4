package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/oralboard/go/internal/health"
	"github.com/mcdev12/oralboard/go/internal/timers"
	"github.com/mcdev12/oralboard/go/internal/timers/events"
	"github.com/mcdev12/oralboard/go/internal/timers/gateway"
	"github.com/rs/zerolog/log"
)

type Services struct {
	Registry *timers.Registry
	Timers   *timers.App
	Handler  *timers.Handler
	RPC      *timers.Service
	Gateway  *gateway.Service
	Health   *health.Checker

	closers []func() error
}

// Close releases the connections opened during setup
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			log.Error().Err(err).Msg("failed to close resource")
		}
	}
}

func setupServices(ctx context.Context, config *Config) (*Services, error) {
	// Wire up dependency injection chain
	// Registry → Repository → App → Handler / Service / Gateway
	services := &Services{}
	clock := clockwork.NewRealClock()

	registry := timers.NewRegistry(clock)
	services.Registry = registry

	var (
		pool *pgxpool.Pool
		err  error
	)
	if config.StoreDriver == storeDriverPostgres {
		pool, err = setupDatabase(ctx)
		if err != nil {
			return nil, err
		}
		services.closers = append(services.closers, closePool(pool))
	}

	repo, err := setupRepository(ctx, pool)
	if err != nil {
		services.Close()
		return nil, err
	}

	publisher := events.NewMultiPublisher(events.NewLogPublisher())
	var natsStatus health.ConnectionReporter
	if config.NATSURL != "" {
		jsConfig := events.DefaultJetStreamConfig()
		jsConfig.URL = config.NATSURL
		jsConfig.StreamName = config.Events.StreamName
		jsConfig.SubjectPrefix = config.Events.SubjectPrefix

		jsPublisher, err := events.NewJetStreamPublisher(ctx, jsConfig)
		if err != nil {
			services.Close()
			return nil, fmt.Errorf("failed to create JetStream publisher: %w", err)
		}
		services.closers = append(services.closers, jsPublisher.Close)
		publisher.Add(jsPublisher)
		natsStatus = jsPublisher
	}

	app := timers.NewApp(registry, repo, publisher, config.Timers)
	if _, err := app.Restore(ctx); err != nil {
		services.Close()
		return nil, fmt.Errorf("failed to restore timers: %w", err)
	}
	services.Timers = app
	services.Handler = timers.NewHandler(app)
	services.RPC = timers.NewService(app)

	gatewayConfig := gateway.DefaultConnectionConfig()
	gatewayConfig.PushInterval = config.PushInterval()
	services.Gateway = gateway.NewService(app, clock, gatewayConfig)
	publisher.Add(services.Gateway.Publisher())

	var dbStatus health.Pinger
	if pool != nil {
		dbStatus = pool
	}
	services.Health = health.NewChecker(dbStatus, natsStatus, func() int {
		return services.Gateway.GetStats().TotalConnections
	})

	return services, nil
}

func setupRepository(ctx context.Context, pool *pgxpool.Pool) (timers.TimerRepository, error) {
	if pool == nil {
		log.Info().Msg("using in-memory timer store")
		return timers.NopRepository{}, nil
	}

	repo := timers.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func closePool(pool *pgxpool.Pool) func() error {
	return func() error {
		pool.Close()
		return nil
	}
}
