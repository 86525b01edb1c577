package index

import (
	"fmt"
	"sync"
)

// Factory constructs an empty index instance of a given kind, ready for
// UnmarshalBinary to restore its state.
type Factory func() Index

var (
	factoryMu sync.RWMutex
	factories = map[Kind]Factory{}
)

// RegisterFactory registers a constructor for an index kind.
//
// Index implementations should typically call this from an init() function.
func RegisterFactory(kind Kind, factory Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factories[kind] = factory
}

// NewOfKind constructs an empty index of the given kind via the registry.
func NewOfKind(kind Kind) (Index, error) {
	factoryMu.RLock()
	factory, ok := factories[kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no factory registered for index kind %s", kind)
	}
	return factory(), nil
}
