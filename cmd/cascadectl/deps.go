package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kajovo/cascade/internal/capability"
	"github.com/kajovo/cascade/internal/config"
	"github.com/kajovo/cascade/internal/credential"
	"github.com/kajovo/cascade/internal/engine"
	"github.com/kajovo/cascade/internal/ledger"
	"github.com/kajovo/cascade/internal/pricing"
	"github.com/kajovo/cascade/internal/provider"
	"github.com/kajovo/cascade/internal/supervisor"
	"github.com/kajovo/cascade/internal/transport"
	"github.com/kajovo/cascade/pkg/logging"
)

// deps is the full dependency graph cascadectl's run/serve commands share.
type deps struct {
	Config     config.Config
	Cred       *credential.Provider
	Provider   provider.Client
	Ledger     *ledger.DB
	Capability *capability.Store
	Pricing    pricing.Table
	Supervisor *supervisor.Supervisor
	Engine     *engine.Engine
	Log        *logging.Logger

	shutdownTracing func(context.Context) error
}

// buildDeps wires every collaborator from config.yaml + environment: config
// load, credential enclave, rate-limited/circuit-broken transport, the
// HTTP provider client, the receipt ledger, the capability cache, and the
// engine dispatcher on top.
func buildDeps() (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cred, err := credential.Load(apiKeyEnvVar, secretFile)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	log, err := logging.New(logging.Config{Level: logging.LevelInfo, Service: "cascadectl", LogDir: cfg.LogDir})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	breakerCfg := transport.BreakerConfig{
		FailureThreshold: cfg.Retry.CircuitBreakerFailures,
		SuccessThreshold: 2,
		ResetTimeout:     cfg.Retry.CircuitBreakerCooldown(),
		HalfOpenMaxCalls: 1,
	}
	retryCfg := transport.RetryConfig{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.Retry.BaseDelay(),
		MaxDelay:    cfg.Retry.MaxDelay(),
		Jitter:      cfg.Retry.Jitter(),
	}
	tr := transport.NewClient(breakerCfg, retryCfg, 5, 10)
	httpClient := provider.NewHTTPClient(cred, tr, "")

	ledgerDB, err := ledger.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	capStore, err := capability.Open(cfg.CapabilityDir)
	if err != nil {
		return nil, fmt.Errorf("open capability cache: %w", err)
	}

	priceTable, err := pricing.Load(filepath.Join(cfg.Pricing.TableFile))
	if err != nil {
		priceTable = pricing.Table{}
	}

	sup := supervisor.New()
	eng := engine.New(httpClient, ledgerDB, log)

	shutdownTracing, err := initTracing()
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	return &deps{
		Config:          cfg,
		Cred:            cred,
		Provider:        httpClient,
		Ledger:          ledgerDB,
		Capability:      capStore,
		Pricing:         priceTable,
		Supervisor:      sup,
		Engine:          eng,
		Log:             log,
		shutdownTracing: shutdownTracing,
	}, nil
}

func (d *deps) Close() {
	if d.shutdownTracing != nil {
		_ = d.shutdownTracing(context.Background())
	}
	if d.Ledger != nil {
		d.Ledger.Close()
	}
	if d.Capability != nil {
		d.Capability.Close()
	}
	if d.Cred != nil {
		d.Cred.Destroy()
	}
	if d.Log != nil {
		d.Log.Close()
	}
}
