// Package service defines the contracts a business service implements to be
// managed by the server manager.
package service

import "context"

// Service is the minimal interface every registered service implements.
type Service interface {
	// ServiceName returns the unique name of the service.
	ServiceName() string
}

// Initializable is implemented by services that need initialization before
// the transports start accepting traffic.
type Initializable interface {
	// Init initializes the service.
	Init(ctx context.Context) error
}

// Closeable is implemented by services that hold resources to release during
// graceful shutdown.
type Closeable interface {
	// Close releases the service's resources.
	Close(ctx context.Context) error
}
