package repo

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ResourceType describes a resource kind registered with the repository. The
// type name is an explicit tag chosen at registration time; it is the key used
// in grant records and is never derived from runtime types.
type ResourceType struct {
	Name        string
	Description string
	SortFields  []string // fields accepted by sorted/filtered list operations
}

type resourceRegistry struct {
	mu    sync.RWMutex
	types map[string]*ResourceType
}

var globalRegistry = &resourceRegistry{
	types: make(map[string]*ResourceType),
}

var (
	errNilResourceType = errors.New("resource type: nil definition")
	errEmptyName       = errors.New("resource type: name is required")
	errDuplicateName   = errors.New("resource type: already registered")
)

// RegisterType adds a resource-type definition to the global registry.
func RegisterType(rt *ResourceType) error {
	if rt == nil {
		return errNilResourceType
	}

	name := strings.TrimSpace(rt.Name)
	if name == "" {
		return errEmptyName
	}

	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if _, exists := globalRegistry.types[name]; exists {
		return fmt.Errorf("%w: %s", errDuplicateName, name)
	}

	cp := *rt
	cp.Name = name
	cp.SortFields = append([]string(nil), rt.SortFields...)
	globalRegistry.types[name] = &cp
	return nil
}

// MustRegisterType registers a resource type and panics on failure. Intended
// for package init of concrete resource kinds.
func MustRegisterType(rt *ResourceType) {
	if err := RegisterType(rt); err != nil {
		panic(err)
	}
}

// TypeByName returns a copy of the registered definition when present.
func TypeByName(name string) (*ResourceType, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	rt, ok := globalRegistry.types[name]
	if !ok {
		return nil, false
	}
	cp := *rt
	cp.SortFields = append([]string(nil), rt.SortFields...)
	return &cp, true
}

// SortableField reports whether the named field may be used for ordering or
// filtering list operations on the resource type.
func SortableField(typeName, field string) bool {
	rt, ok := TypeByName(typeName)
	if !ok {
		return false
	}
	for _, f := range rt.SortFields {
		if f == field {
			return true
		}
	}
	return false
}
