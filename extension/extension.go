// Package extension provides the Forge extension adapter for Reckon.
//
// It implements the forge.Extension interface to integrate Reckon
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.reckon" or "reckon" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/reckon"
	"github.com/xraph/reckon/store"
	"github.com/xraph/reckon/store/memory"
	"github.com/xraph/reckon/store/mongo"
	"github.com/xraph/reckon/store/postgres"
	"github.com/xraph/reckon/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "reckon"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Billing provider event ingestion engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Reckon as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *reckon.Engine
	store      store.Store
	db         *grove.DB
	engineOpts []reckon.Option
}

// New creates a new Reckon Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Reckon instance.
// This is nil until Register is called.
func (e *Extension) Engine() *reckon.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		st, err := e.buildStore()
		if err != nil {
			return err
		}
		e.store = st
	}

	opts := e.buildEngineOpts()

	e.engine = reckon.New(e.store, opts...)

	return vessel.Provide(fapp.Container(), func() (*reckon.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("reckon: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("reckon: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildStore constructs the store backend from the configured driver and
// grove database. Without a database the memory store is used.
func (e *Extension) buildStore() (store.Store, error) {
	if e.db == nil {
		return memory.New(), nil
	}
	switch e.config.Driver {
	case "postgres", "pg":
		return postgres.New(e.db), nil
	case "sqlite":
		return sqlite.New(e.db), nil
	case "mongo":
		return mongo.New(e.db), nil
	case "":
		return nil, errors.New("reckon: a grove database was provided but no driver is configured")
	default:
		return nil, fmt.Errorf("reckon: unknown store driver %q", e.config.Driver)
	}
}

// buildEngineOpts constructs reckon.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []reckon.Option {
	opts := make([]reckon.Option, 0, len(e.engineOpts)+2)

	if e.config.WebhookSecret != "" {
		opts = append(opts, reckon.WithWebhookSecret(e.config.WebhookSecret))
	}
	if e.config.SignatureTolerance > 0 {
		opts = append(opts, reckon.WithTolerance(e.config.SignatureTolerance))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("reckon: configuration is required but not found in config files; " +
				"ensure 'extensions.reckon' or 'reckon' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("reckon: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("driver", e.config.Driver),
		forge.F("signature_tolerance", e.config.SignatureTolerance),
		forge.F("webhook_secret_set", e.config.WebhookSecret != ""),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.reckon" first (namespaced pattern).
	if cm.IsSet("extensions.reckon") {
		if err := cm.Bind("extensions.reckon", &cfg); err == nil {
			e.Logger().Debug("reckon: loaded config from file",
				forge.F("key", "extensions.reckon"),
			)
			return cfg, true
		}
		e.Logger().Warn("reckon: failed to bind extensions.reckon config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "reckon" key.
	if cm.IsSet("reckon") {
		if err := cm.Bind("reckon", &cfg); err == nil {
			e.Logger().Debug("reckon: loaded config from file",
				forge.F("key", "reckon"),
			)
			return cfg, true
		}
		e.Logger().Warn("reckon: failed to bind reckon config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.SignatureTolerance == 0 {
		cfg.SignatureTolerance = defaults.SignatureTolerance
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.WebhookSecret == "" && programmaticConfig.WebhookSecret != "" {
		yamlConfig.WebhookSecret = programmaticConfig.WebhookSecret
	}
	if yamlConfig.Driver == "" && programmaticConfig.Driver != "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.SignatureTolerance == 0 && programmaticConfig.SignatureTolerance != 0 {
		yamlConfig.SignatureTolerance = programmaticConfig.SignatureTolerance
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
