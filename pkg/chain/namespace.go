package chain

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/openfroyo/anlchain/pkg/engine"
)

// Factory creates a new instance of a module class.
type Factory func() engine.Module

// Namespace is a named table of module classes.
type Namespace struct {
	name    string
	mu      sync.RWMutex
	classes map[string]Factory
}

// NewNamespace creates an empty namespace.
func NewNamespace(name string) *Namespace {
	return &Namespace{
		name:    name,
		classes: make(map[string]Factory),
	}
}

// Global is the process-wide default namespace. Every resolver searches it
// first, including after Clear.
var Global = NewNamespace("Global")

// Name returns the namespace name.
func (n *Namespace) Name() string {
	return n.name
}

// Register adds a class.
func (n *Namespace) Register(class string, factory Factory) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.classes[class]; exists {
		return fmt.Errorf("class %s already registered in namespace %s", class, n.name)
	}
	n.classes[class] = factory
	return nil
}

// MustRegister adds a class and panics if it is already present. It is meant
// for package init functions.
func (n *Namespace) MustRegister(class string, factory Factory) {
	if err := n.Register(class, factory); err != nil {
		panic(err)
	}
}

// Unregister removes a class.
func (n *Namespace) Unregister(class string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.classes, class)
}

// Lookup returns the factory of a class.
func (n *Namespace) Lookup(class string) (Factory, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	f, ok := n.classes[class]
	return f, ok
}

// Classes returns the registered class names, sorted.
func (n *Namespace) Classes() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	names := make([]string, 0, len(n.classes))
	for name := range n.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolver searches an ordered list of namespaces for module classes.
type Resolver struct {
	namespaces []*Namespace
}

// NewResolver creates a resolver seeded with Global.
func NewResolver() *Resolver {
	r := &Resolver{}
	r.Reset()
	return r
}

// Reset drops every namespace except Global.
func (r *Resolver) Reset() {
	r.namespaces = []*Namespace{Global}
}

// Add appends a namespace to the search list. Adding the same namespace
// twice is a no-op.
func (r *Resolver) Add(ns *Namespace) {
	for _, existing := range r.namespaces {
		if existing == ns {
			return
		}
	}
	r.namespaces = append(r.namespaces, ns)
}

// Namespaces returns the search list in order.
func (r *Resolver) Namespaces() []*Namespace {
	return append([]*Namespace(nil), r.namespaces...)
}

// Resolve returns the factory for class. The first namespace in search order
// that has the class wins. "Ns.Class" restricts the search to namespace Ns.
func (r *Resolver) Resolve(class string) (Factory, error) {
	if nsName, name, qualified := strings.Cut(class, "."); qualified {
		for _, ns := range r.namespaces {
			if ns.Name() != nsName {
				continue
			}
			if f, ok := ns.Lookup(name); ok {
				return f, nil
			}
		}
		return nil, classNotFoundError(class)
	}

	for _, ns := range r.namespaces {
		if f, ok := ns.Lookup(class); ok {
			return f, nil
		}
	}
	return nil, classNotFoundError(class)
}
