package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/cutover/cutover/pkg/config"
	"github.com/cutover/cutover/pkg/engine"
	"github.com/cutover/cutover/pkg/orchestrator"
	"github.com/cutover/cutover/pkg/policy"
	"github.com/cutover/cutover/pkg/recovery"
	"github.com/cutover/cutover/pkg/stores"
	"github.com/cutover/cutover/pkg/telemetry"
)

// app bundles the wired subsystems a command needs.
type app struct {
	tel      *telemetry.Telemetry
	store    stores.Store
	engine   *engine.Engine
	orch     *orchestrator.Orchestrator
	recovery *recovery.Service
	policies *policy.Engine
	parser   *config.Parser
}

// newApp wires the store, engine, policies and orchestrator from the
// global flags.
func newApp(ctx context.Context) (*app, error) {
	cfg := telemetry.DefaultConfig()
	cfg.Logging.Level = logLevel
	cfg.Logging.Format = logFormat
	cfg.Environment = environment
	if metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.ListenAddress = metricsAddr
	}

	tel, err := telemetry.New(cfg)
	if err != nil {
		return nil, err
	}

	var store stores.Store
	if memoryStore {
		store = stores.NewMemoryStore()
	} else {
		store, err = stores.NewSQLiteStore(stores.Config{Path: dbPath})
		if err != nil {
			return nil, err
		}
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	registry := engine.NewRegistry()
	engine.RegisterDefaults(registry)
	eng := engine.New(registry, tel)

	policies, err := policy.NewEngine(tel.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating policy engine: %w", err)
	}
	gate := policy.NewGate(policies, policy.WithEnvironment(environment))

	orch := orchestrator.New(store, eng, tel, orchestrator.WithPolicyGate(gate))

	if cfg.Metrics.Enabled {
		if err := tel.Metrics.StartMetricsServer(); err != nil {
			tel.Logger.WithError(err).Warn("failed to start metrics server")
		}
	}

	return &app{
		tel:      tel,
		store:    store,
		engine:   eng,
		orch:     orch,
		recovery: recovery.New(store, tel),
		policies: policies,
		parser:   config.NewParser(),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.tel.Shutdown(ctx); err != nil {
		a.tel.Logger.WithError(err).Warn("telemetry shutdown failed")
	}
	if err := a.store.Close(); err != nil {
		a.tel.Logger.WithError(err).Warn("store close failed")
	}
}

// printResult renders v as indented JSON when --json is set, otherwise
// hands v to the human formatter.
func printResult(v interface{}, human func()) error {
	if jsonOutput {
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}
	human()
	return nil
}
