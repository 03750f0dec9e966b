// providers.go - pluggable signal providers and the frozen provider registry

package signalbus

import "fmt"

// Context is what a Provider receives: the tick's raw Inputs. Providers are
// pure functions of ctx -> partial signal map; they may only write keys
// they own (spec.md §4.2 step 3). Ownership is checked when a provider's
// output is applied: a key outside the provider's namespace is dropped
// with a warning.
type Context struct {
	Inputs Inputs
}

// Provider computes the signals it owns for the current tick. An error
// (including a recovered panic) is swallowed by the registry and surfaced
// as a warning string; the provider's keys are simply absent that tick.
type Provider func(ctx *Context) (map[string]float64, error)

type namedProvider struct {
	name     string
	owns     []string
	provider Provider
}

// Registry is the process-wide set of signal providers. Like the behavior
// catalog (spec.md §9 "Global registries populated at import time"), it is
// built once at process init and must be Frozen before the first Build
// call; registering after freeze panics, making "frozen before first use"
// a runtime-enforced invariant rather than a convention.
type Registry struct {
	byName map[string]namedProvider
	frozen bool
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]namedProvider)}
}

// Register adds a provider under name, declaring the signal keys it owns.
// Panics if called after Freeze, or if name or any owned key is already
// registered.
func (r *Registry) Register(name string, owns []string, p Provider) {
	if r.frozen {
		panic(fmt.Sprintf("signalbus: Register(%q) after registry frozen", name))
	}
	if _, dup := r.byName[name]; dup {
		panic(fmt.Sprintf("signalbus: provider %q already registered", name))
	}
	for existingName, existing := range r.byName {
		for _, k := range owns {
			for _, ek := range existing.owns {
				if ek == k {
					panic(fmt.Sprintf("signalbus: key %q claimed by both %q and %q", k, existingName, name))
				}
			}
		}
	}
	r.byName[name] = namedProvider{name: name, owns: append([]string(nil), owns...), provider: p}
}

func (r *Registry) Freeze() { r.frozen = true }

func (r *Registry) Frozen() bool { return r.frozen }

// apply runs every registered provider in name order, writing only the
// keys it owns; a provider error or panic produces a warning and leaves
// its keys unset for the tick (they read back as 0.0).
func (r *Registry) apply(b *Bus, ctx *Context) []string {
	var warnings []string
	asMap := make(map[string]Provider, len(r.byName))
	for name, np := range r.byName {
		asMap[name] = np.provider
	}
	for _, name := range sortedNames(asMap) {
		np := r.byName[name]
		values, err := runProviderSafely(np.provider, ctx)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("signal provider %q: %v", name, err))
			continue
		}
		owned := make(map[string]bool, len(np.owns))
		for _, k := range np.owns {
			owned[k] = true
		}
		for k, v := range values {
			if !owned[k] {
				warnings = append(warnings, fmt.Sprintf("signal provider %q wrote unowned key %q, dropped", name, k))
				continue
			}
			b.set(k, v)
		}
	}
	return warnings
}

func runProviderSafely(p Provider, ctx *Context) (values map[string]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p(ctx)
}
