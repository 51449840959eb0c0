// Package di wires the levyd services together. A string-keyed container
// holds lazily-built singletons; the Provider registers a builder per
// service so construction order follows the dependency graph instead of
// the registration order.
package di

import (
	"errors"
	"sync"
)

// Container is the dependency injection container.
// It manages service registration and resolution.
type Container struct {
	mu       sync.RWMutex
	services map[string]interface{}
	builders map[string]Builder
	building map[string]chan struct{}
}

// Builder is a function that creates a service instance. Builders may
// resolve their own dependencies through the container. Returning a nil
// instance with a nil error marks the service as deliberately absent, for
// example a disabled history store.
type Builder func(c *Container) (interface{}, error)

// New creates a new dependency injection container.
func New() *Container {
	return &Container{
		services: make(map[string]interface{}),
		builders: make(map[string]Builder),
		building: make(map[string]chan struct{}),
	}
}

// Register registers a service instance.
func (c *Container) Register(name string, service interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services[name] = service
}

// RegisterBuilder registers a builder function for lazy instantiation.
func (c *Container) RegisterBuilder(name string, builder Builder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.builders[name] = builder
}

// Get retrieves a service by name, building it on first use. The builder
// runs outside the container lock so it can Get its own dependencies;
// concurrent callers for the same name wait for the first build to finish.
func (c *Container) Get(name string) (interface{}, error) {
	c.mu.RLock()
	service, exists := c.services[name]
	c.mu.RUnlock()

	if exists {
		return service, nil
	}

	c.mu.Lock()
	// Check again in case it was built while waiting for the lock.
	if service, exists := c.services[name]; exists {
		c.mu.Unlock()
		return service, nil
	}
	if wait, inFlight := c.building[name]; inFlight {
		c.mu.Unlock()
		<-wait
		return c.Get(name)
	}
	builder, hasBuilder := c.builders[name]
	if !hasBuilder {
		c.mu.Unlock()
		return nil, errors.New("service not found: " + name)
	}
	wait := make(chan struct{})
	c.building[name] = wait
	c.mu.Unlock()

	service, err := builder(c)

	c.mu.Lock()
	delete(c.building, name)
	close(wait)
	if err == nil {
		c.services[name] = service
	}
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return service, nil
}

// MustGet retrieves a service or panics if it cannot be built.
func (c *Container) MustGet(name string) interface{} {
	service, err := c.Get(name)
	if err != nil {
		panic(err)
	}
	return service
}

// Instance returns a service only if it has already been built or
// registered. It never triggers a builder, which makes it safe to use
// during shutdown when half the graph may never have been constructed.
func (c *Container) Instance(name string) (interface{}, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	service, exists := c.services[name]
	return service, exists
}

// Has checks if a service is registered.
func (c *Container) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, exists := c.services[name]
	if exists {
		return true
	}
	_, exists = c.builders[name]
	return exists
}

// ServiceNames returns all registered service names.
func (c *Container) ServiceNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make(map[string]bool)
	for name := range c.services {
		names[name] = true
	}
	for name := range c.builders {
		names[name] = true
	}

	result := make([]string, 0, len(names))
	for name := range names {
		result = append(result, name)
	}
	return result
}

// Clear removes all services and builders.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.services = make(map[string]interface{})
	c.builders = make(map[string]Builder)
}

// Service name constants for type-safe access.
const (
	ServiceConfig        = "config"
	ServiceLogger        = "logger"
	ServiceMetrics       = "metrics"
	ServiceBus           = "events.bus"
	ServiceStateStore    = "statestore"
	ServiceHistory       = "history"
	ServiceLedger        = "ledger"
	ServiceAdapter       = "exchange.adapter"
	ServiceTreasury      = "treasury.engine"
	ServiceEngine        = "levy.engine"
	ServiceAPIServer     = "api.server"
	ServiceStreamServer  = "stream.server"
	ServiceGRPCServer    = "grpc.server"
	ServiceMetricsServer = "metrics.server"
)
