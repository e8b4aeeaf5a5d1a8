// Package ambient provides a request-scoped key/value store that travels
// with context.Context.
//
// A scope is attached to a context with NewScope. Values written with Set are
// stored in the nearest scope in place, so every holder of that scope (outer
// middleware, goroutines started with the request context) observes them.
// Reads fall through to parent scopes, which lets a request scope inherit
// process-wide values such as the application name without writing back
// into the shared root.
//
// Typical usage:
//
//	root := ambient.NewScope(context.Background())
//	root = ambient.SetApplication(root, "billing")
//
//	// per request
//	ctx := ambient.NewScope(root)
//	ctx = ambient.SetCorrelationID(ctx, id)
//	...
//	id := ambient.CorrelationID(ctx)
package ambient

import (
	"context"
	"sync"
)

// key is a registered ambient key. One key instance exists per name for the
// lifetime of the process; scopes index their values by it.
type key struct {
	name string
}

// registry maps key names to their process-wide key instance.
var registry sync.Map // map[string]*key

// register returns the key for name, creating it on first use.
// Concurrent first registrations resolve to a single shared instance.
func register(name string) *key {
	if k, ok := registry.Load(name); ok {
		return k.(*key) //nolint:forcetypeassert // registry only holds *key
	}

	k, _ := registry.LoadOrStore(name, &key{name: name})

	return k.(*key) //nolint:forcetypeassert // registry only holds *key
}

// lookupKey returns the key for name without registering it.
func lookupKey(name string) (*key, bool) {
	k, ok := registry.Load(name)
	if !ok {
		return nil, false
	}

	return k.(*key), true //nolint:forcetypeassert // registry only holds *key
}

// Scope holds the ambient values written within one logical unit of work,
// typically one inbound request.
type Scope struct {
	parent *Scope

	mu     sync.RWMutex
	values map[*key]any
}

type scopeCtxKey struct{}

// NewScope returns a context carrying a new scope whose reads fall through to
// the scope already present on ctx, if any. A nil ctx is treated as
// context.Background().
func NewScope(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &Scope{
		parent: scopeFrom(ctx),
		values: make(map[*key]any),
	}

	return context.WithValue(ctx, scopeCtxKey{}, s)
}

// scopeFrom returns the scope attached to ctx or nil.
func scopeFrom(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}

	s, _ := ctx.Value(scopeCtxKey{}).(*Scope)

	return s
}

// HasScope reports whether ctx carries an ambient scope.
func HasScope(ctx context.Context) bool {
	return scopeFrom(ctx) != nil
}

// Set stores value under name in the scope carried by ctx and returns ctx.
// If ctx carries no scope, a new one is attached and the derived context is
// returned. Callers should always continue with the returned context.
func Set[T any](ctx context.Context, name string, value T) context.Context {
	s := scopeFrom(ctx)
	if s == nil {
		ctx = NewScope(ctx)
		s = scopeFrom(ctx)
	}

	k := register(name)

	s.mu.Lock()
	s.values[k] = value
	s.mu.Unlock()

	return ctx
}

// setOnce is Set for write-once values: when the nearest scope already
// holds name, the existing value is kept. Parent scopes do not count.
func setOnce[T any](ctx context.Context, name string, value T) context.Context {
	s := scopeFrom(ctx)
	if s == nil {
		ctx = NewScope(ctx)
		s = scopeFrom(ctx)
	}

	k := register(name)

	s.mu.Lock()
	if _, ok := s.values[k]; !ok {
		s.values[k] = value
	}
	s.mu.Unlock()

	return ctx
}

// Lookup returns the value stored under name and whether it was found with
// the requested type. A value of a different type is reported as absent.
func Lookup[T any](ctx context.Context, name string) (T, bool) {
	var zero T

	k, ok := lookupKey(name)
	if !ok {
		return zero, false
	}

	raw, ok := scopeFrom(ctx).get(k)
	if !ok {
		return zero, false
	}

	v, ok := raw.(T)
	if !ok {
		return zero, false
	}

	return v, true
}

// Get returns the value stored under name, or the zero value of T when the
// key is unset or holds a value of another type.
func Get[T any](ctx context.Context, name string) T {
	v, _ := Lookup[T](ctx, name)
	return v
}

// Snapshot returns a copy of every value visible from ctx. Values in inner
// scopes shadow those of their parents.
func Snapshot(ctx context.Context) map[string]any {
	out := make(map[string]any)

	var chain []*Scope
	for s := scopeFrom(ctx); s != nil; s = s.parent {
		chain = append(chain, s)
	}

	// Walk outermost first so inner scopes overwrite.
	for i := len(chain) - 1; i >= 0; i-- {
		s := chain[i]

		s.mu.RLock()
		for k, v := range s.values {
			out[k.name] = v
		}
		s.mu.RUnlock()
	}

	return out
}

// get walks the scope chain for k.
func (s *Scope) get(k *key) (any, bool) {
	for ; s != nil; s = s.parent {
		s.mu.RLock()
		v, ok := s.values[k]
		s.mu.RUnlock()

		if ok {
			return v, true
		}
	}

	return nil, false
}
