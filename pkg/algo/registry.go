// Package algo provides the path-finding algorithms reachable from inline
// query syntax (*NAME|N) and the registry that names them.
//
// A Registry is an explicit object injected into the query executor; there
// is no package-level registry. Registry methods are safe for concurrent use.
package algo

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/orneryd/nornicq/pkg/storage"
)

// Errors returned by the registry and the built-in algorithms.
var (
	ErrAlgorithmNotFound = errors.New("algorithm not found")
	ErrNoPath            = errors.New("no path")
	ErrInvalidWeight     = errors.New("invalid edge weight")
)

// Path is an ordered sequence of node identifiers.
type Path []storage.NodeID

// Func runs one algorithm between source and target with an integer
// parameter whose meaning is algorithm-specific (k, depth, ignored).
type Func func(ctx context.Context, g storage.Graph, source, target storage.NodeID, param int) ([]Path, error)

// Registry maps upper-cased algorithm names to implementations.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// NewDefaultRegistry returns a registry holding every built-in algorithm,
// with WSHORTEST reading DefaultWeightAttribute.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for name, fn := range Builtins(DefaultWeightAttribute) {
		r.Register(name, fn)
	}
	return r
}

// Register stores fn under the upper-cased name, replacing any previous
// entry. It panics on an empty name or nil fn.
func (r *Registry) Register(name string, fn Func) {
	key := normalizeName(name)
	if key == "" {
		panic("algo.Register: empty name")
	}
	if fn == nil {
		panic("algo.Register: nil function")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[key] = fn
}

// Unregister removes name. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, normalizeName(name))
}

// Lookup returns the algorithm registered under name, case-insensitively.
// Unknown names yield an error wrapping ErrAlgorithmNotFound.
func (r *Registry) Lookup(name string) (Func, error) {
	key := normalizeName(name)
	r.mu.RLock()
	fn, ok := r.funcs[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAlgorithmNotFound, key)
	}
	return fn, nil
}

// Names lists registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
