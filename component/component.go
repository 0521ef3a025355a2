// Package component defines the lifecycle contract shared by the quota service parts
//
// It sits at the bottom of the import graph and depends on no other package of this module.
package component

import "context"

// Component unified lifecycle: Init → Start → Stop
type Component interface {
	// Name unique component name, used by DependsOn declarations
	Name() string

	// DependsOn names of the components that must be initialized first
	//
	// A name with the "optional:" prefix is skipped when it is not registered.
	DependsOn() []string

	// Init reads configuration and creates resources without serving traffic
	Init(ctx context.Context, loader ConfigLoader) error

	// Start begins serving (opens connections, starts schedulers)
	Start(ctx context.Context) error

	// Stop releases resources; calling it more than once is allowed
	Stop(ctx context.Context) error
}

// HealthChecker optional health probe of a component
type HealthChecker interface {
	// Check returns nil when healthy
	Check(ctx context.Context) error

	// Name probe name, e.g. "redis", "tierstore"
	Name() string
}

// HealthCheckProvider components that expose a HealthChecker
type HealthCheckProvider interface {
	GetHealthChecker() HealthChecker
}
