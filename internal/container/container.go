// Package container wires the application's dependencies with ordered
// initialization and reverse-order teardown.
package container

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/anungis437/nzila-automation-sub005/internal/application/dispatcher"
	"github.com/anungis437/nzila-automation-sub005/internal/application/gate"
	"github.com/anungis437/nzila-automation-sub005/internal/application/port"
	"github.com/anungis437/nzila-automation-sub005/internal/application/saga"
	"github.com/anungis437/nzila-automation-sub005/internal/application/service"
	"github.com/anungis437/nzila-automation-sub005/internal/application/workflow"
	"github.com/anungis437/nzila-automation-sub005/internal/config"
	"github.com/anungis437/nzila-automation-sub005/internal/infrastructure/persistence/repository"
	httpiface "github.com/anungis437/nzila-automation-sub005/internal/interfaces/http"
	"github.com/anungis437/nzila-automation-sub005/pkg/database"
)

// Container holds the application's wired components.
type Container struct {
	cfg    *config.Config
	logger *zap.Logger

	db *database.DB

	InstanceRepo port.InstanceRepository
	AuditRepo    port.AuditRepository
	EvidenceRepo port.EvidenceRepository
	TxManager    port.TransactionManager

	Gates        *gate.Registry
	Dispatcher   dispatcher.Dispatcher
	Engine       workflow.Engine
	Orchestrator *saga.Orchestrator
	Exporter     *service.ChainExporter
	Server       *httpiface.Server

	closed atomic.Bool
}

// New builds the full dependency graph: database (with migrations), the
// repositories, the gate registry with the builtin gates, the dispatcher,
// the engine, the saga orchestrator, the chain exporter and the HTTP server.
func New(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	c := &Container{
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	c.InstanceRepo = repository.NewInstanceRepository(db, logger)
	c.AuditRepo = repository.NewAuditRepository(db, logger)
	c.EvidenceRepo = repository.NewEvidenceRepository(db, logger)
	c.TxManager = repository.NewTxManager(db, logger)

	c.Gates = gate.NewRegistry()
	if err := registerBuiltinGates(c.Gates); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register gates: %w", err)
	}

	c.Dispatcher = dispatcher.NewDispatcher(logger)
	c.Engine = workflow.NewEngine(
		c.InstanceRepo,
		c.AuditRepo,
		c.EvidenceRepo,
		c.TxManager,
		gate.NewEvaluator(c.Gates, logger),
		c.Dispatcher,
		logger,
	)
	c.Orchestrator = saga.NewOrchestrator(c.Dispatcher, logger)
	c.Exporter = service.NewChainExporter(c.AuditRepo, logger)

	c.Server = httpiface.NewServer(httpiface.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, c.Engine, c.Exporter, logger)

	return c, nil
}

// registerBuiltinGates installs the generic governance gates definitions may
// reference by name.
func registerBuiltinGates(registry *gate.Registry) error {
	gates := []gate.Gate{
		gate.NewMinThresholdGate("margin_floor", "margin", "margin_floor", "margin_below_floor"),
		gate.NewMaxThresholdGate("discount_ceiling", "discount", "discount_ceiling", "discount_above_ceiling", true),
		gate.NewZeroCounterGate("open_exceptions", "open_exceptions", "open_exceptions_outstanding"),
		gate.NewRequiredFlagGate("dual_approval", "dual_approved", "dual_approval_missing"),
	}
	for _, g := range gates {
		if err := registry.Register(g); err != nil {
			return err
		}
	}
	return nil
}

// Start runs the HTTP server until ctx is cancelled.
func (c *Container) Start(ctx context.Context) error {
	return c.Server.Start(ctx)
}

// Close tears down components in reverse initialization order.
func (c *Container) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	if err := c.Server.Stop(); err != nil {
		c.logger.Error("Failed to stop HTTP server", zap.Error(err))
	}
	if err := c.Dispatcher.Close(); err != nil {
		c.logger.Error("Failed to close dispatcher", zap.Error(err))
	}
	return c.db.Close()
}
