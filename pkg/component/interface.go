// Package component provides shared contracts for infrastructure components.
package component

import "github.com/spf13/pflag"

// ConfigOptions defines the standard interface for component options.
// Component configuration types (Redis, Milvus, etc.) implement this
// interface to ensure consistent behavior across the system.
//
// This interface provides a unified contract for:
//   - Completing configuration with default values
//   - Validating configuration parameters
//   - Adding command-line flags
type ConfigOptions interface {
	// Complete fills in any fields not set that are required to have valid data.
	// This method should set default values for optional fields and derive
	// computed fields from other configuration.
	Complete() error

	// Validate validates the options and returns an error if any option is invalid.
	// Validate should be called after Complete() to ensure all fields are
	// properly set. Returns nil if all validations pass.
	Validate() error

	// AddFlags adds flags for the options to the specified FlagSet.
	// Optional prefixes are prepended to flag names to avoid conflicts
	// (e.g., "cache." results in flags like "--cache.redis.host").
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
