package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/reckon"
	"github.com/xraph/reckon/notify"
	"github.com/xraph/reckon/provider"
	"github.com/xraph/reckon/store"
)

// Option configures the Reckon Forge extension.
type Option func(*Extension)

// WithStore sets the store for the engine, bypassing driver construction.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB sets the grove database the store backend is built from. The
// driver name selects the backend: "postgres", "sqlite", or "mongo".
func WithGroveDB(db *grove.DB, driver string) Option {
	return func(e *Extension) {
		e.db = db
		e.config.Driver = driver
	}
}

// WithEngineOption passes a reckon.Option through to the underlying engine.
func WithEngineOption(opt reckon.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithSubscriber registers a lifecycle notification subscriber.
func WithSubscriber(s notify.Subscriber) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, reckon.WithSubscriber(s))
	}
}

// WithProvider sets the outbound billing provider client.
func WithProvider(p provider.Provider) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, reckon.WithProvider(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithWebhookSecret sets the inbound signature verification secret.
func WithWebhookSecret(secret string) Option {
	return func(e *Extension) { e.config.WebhookSecret = secret }
}

// WithSignatureTolerance sets the freshness window for signed timestamps.
func WithSignatureTolerance(d time.Duration) Option {
	return func(e *Extension) { e.config.SignatureTolerance = d }
}
