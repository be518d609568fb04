package replay

import (
	"fmt"
	"sort"
	"sync"
)

// Collaborators bundles the external contracts one gateway provides.
type Collaborators struct {
	Replayer Replayer
	Judge    Judge
	Embedder Embedder
}

// Factory creates a collaborator bundle from the given configuration.
type Factory func(cfg GatewayConfig) (*Collaborators, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a collaborator factory to the registry.
// Implementations call this in their init() function.
// Panics if a collaborator with the same name is already registered.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("collaborator %q already registered", name))
	}
	registry[name] = factory
}

// New creates a collaborator bundle using the named factory.
// Returns ErrUnknownCollaborator if the name is not registered.
func New(name string, cfg GatewayConfig) (*Collaborators, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollaborator, name)
	}
	return factory(cfg)
}

// Available returns the names of all registered collaborators, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Unregister removes a collaborator from the registry.
// Primarily useful for tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, name)
}
