package extension

import "time"

// Config holds the Reckon extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.reckon" or "reckon" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// WebhookSecret is the shared secret for inbound signature verification.
	// Without one, the engine rejects every delivery.
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret" yaml:"webhook_secret"`

	// SignatureTolerance is the freshness window for signed timestamps
	// (default: 5m). Zero in YAML falls back to the default; use the engine
	// option directly to disable the check.
	SignatureTolerance time.Duration `json:"signature_tolerance" mapstructure:"signature_tolerance" yaml:"signature_tolerance"`

	// Driver selects the store backend built from the grove database set via
	// WithGroveDB: "postgres", "sqlite", or "mongo". Ignored when a store is
	// provided programmatically; without a database the memory store is used.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SignatureTolerance: 5 * time.Minute,
	}
}
