package logger

import (
	logopts "github.com/kart-io/codequery/pkg/options/logger"
)

// Options mirrors the flag-bound logger options for reload plumbing.
type Options = logopts.Options

// NewOptions creates default logger options.
var NewOptions = logopts.NewOptions
