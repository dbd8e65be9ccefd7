package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/openfroyo/heatdriver/pkg/config"
	"github.com/openfroyo/heatdriver/pkg/discovery"
	"github.com/openfroyo/heatdriver/pkg/engine"
	"github.com/openfroyo/heatdriver/pkg/openstack"
	"github.com/openfroyo/heatdriver/pkg/policy"
	"github.com/openfroyo/heatdriver/pkg/stores"
	"github.com/openfroyo/heatdriver/pkg/telemetry"
	"github.com/openfroyo/heatdriver/pkg/tosca"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// app is the wired driver shared by the commands.
type app struct {
	cfg          *config.Config
	telemetry    *telemetry.Telemetry
	logger       zerolog.Logger
	locations    *openstack.LocationTranslator
	policies     *policy.Engine
	store        *stores.SQLiteStore
	journal      *stores.Journal
	orchestrator *engine.Orchestrator
}

type appOptions struct {
	// keepFiles stops the orchestrator deleting driver files, for
	// directories the user pointed at.
	keepFiles bool

	// serving enables async events and policy hot reload.
	serving bool
}

// loadConfig reads the driver configuration named by the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithOptions(config.Options{
		File:    configPath,
		EnvFile: envFile,
	})
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func telemetryConfig(cfg *config.Config, version string, serving bool) *telemetry.Config {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.Logging.Level = cfg.Log.Level
	tcfg.Logging.Format = cfg.Log.Format

	tcfg.Tracing.Enabled = cfg.Tracing.Enabled
	tcfg.Tracing.Exporter = cfg.Tracing.Exporter
	tcfg.Tracing.Endpoint = cfg.Tracing.Endpoint
	tcfg.Tracing.SamplingRate = cfg.Tracing.SamplingRate
	tcfg.Tracing.Insecure = cfg.Tracing.Insecure

	tcfg.Metrics.Enabled = cfg.Metrics.Enabled

	// events only feed the journal
	tcfg.Events.Enabled = cfg.Journal.Enabled
	tcfg.Events.EnableAsync = serving
	tcfg.Events.BufferSize = 1024
	tcfg.Events.MaxBatchSize = 64
	return tcfg
}

// newApp wires configuration, telemetry, policies, the journal and the
// orchestrator.
func newApp(ctx context.Context, cfg *config.Config, version string, opts appOptions) (a *app, err error) {
	t, err := telemetry.NewTelemetry(telemetryConfig(cfg, version, opts.serving))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := t.Logger.Zerolog()
	log.Logger = logger

	a = &app{
		cfg:       cfg,
		telemetry: t,
		logger:    logger,
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	a.locations = openstack.NewLocationTranslator(logger, openstack.WithCallRecorder(t.Metrics))

	orchestratorOpts := []engine.OrchestratorOption{engine.WithObserver(t.Recorder())}

	if len(cfg.Policy.Paths) > 0 || len(cfg.Policy.Enable) > 0 {
		if a.policies, err = newPolicyEngine(ctx, cfg.Policy, logger, opts.serving); err != nil {
			return nil, err
		}
		orchestratorOpts = append(orchestratorOpts, engine.WithAdmission(a.policies))
	}

	if cfg.Journal.Enabled {
		if a.store, err = openStore(ctx, cfg.Journal.Path); err != nil {
			return nil, err
		}
		a.journal = stores.NewJournal(a.store, logger)
		a.journal.Subscribe(t.Events)
	}

	a.orchestrator = engine.NewOrchestrator(
		a.locations,
		tosca.NewTranslator(logger),
		discovery.NewEngine(logger),
		engine.OrchestratorConfig{
			KeepFiles: cfg.ResourceDriver.KeepFiles || opts.keepFiles,
			Status: engine.StatusMapperConfig{
				SkipAdoptStatusCheck: cfg.Adopt.SkipStatusCheck,
				AdoptableStatuses:    cfg.Adopt.AdoptableStatuses,
			},
		},
		logger,
		orchestratorOpts...,
	)

	return a, nil
}

func newPolicyEngine(ctx context.Context, cfg config.PolicyConfig, logger zerolog.Logger, watch bool) (*policy.Engine, error) {
	policies, err := policy.NewEngine(logger)
	if err != nil {
		return nil, err
	}
	if err := policies.Enable(cfg.Enable...); err != nil {
		return nil, err
	}
	if len(cfg.Paths) == 0 {
		return policies, nil
	}
	if err := policies.LoadPolicies(ctx, cfg.Paths); err != nil {
		return nil, err
	}
	if watch && cfg.Watch {
		if err := policies.Watch(ctx, cfg.Paths); err != nil {
			return nil, err
		}
	}
	return policies, nil
}

func openStore(ctx context.Context, path string) (*stores.SQLiteStore, error) {
	store, err := stores.NewSQLiteStore(stores.Config{Path: path})
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to open request journal: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to migrate request journal: %w", err)
	}
	return store, nil
}

// Close flushes telemetry, which drains pending journal events, and then
// closes the journal.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal close: %w", err))
		}
	}
	return errors.Join(errs...)
}
