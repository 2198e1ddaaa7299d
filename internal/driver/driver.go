// Package driver maps driver names to database/sql backends and describes what
// each backend can do. Drivers are black boxes: the registry never speaks a
// wire protocol, it only knows the database/sql name, the native dialect and
// how to recognise errors worth retrying.
package driver

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hlop3z/xpdb/internal/alerr"
	"github.com/hlop3z/xpdb/internal/dialect"
)

// Capabilities describes the behaviour of a backend.
type Capabilities struct {
	// Dialect is the canonical name of the SQL dialect the backend speaks.
	Dialect string
	// Embedded marks in-process engines that share state with the caller.
	// They settle for EmbeddedSettle between operations unless SettleDelay
	// says otherwise.
	Embedded bool
	// TransactionalDDL reports whether schema changes can run in a transaction.
	TransactionalDDL bool
	// SettleDelay is the pause between two operations on one connection.
	SettleDelay time.Duration
	// Transient reports whether an error is worth retrying. Nil means never.
	Transient func(error) bool
}

// EmbeddedSettle lets an in-process engine release its locks before the next
// operation is dispatched.
const EmbeddedSettle = 5 * time.Millisecond

// Settle returns the pause between two operations on one connection.
func (c Capabilities) Settle() time.Duration {
	if c.SettleDelay == 0 && c.Embedded {
		return EmbeddedSettle
	}
	return c.SettleDelay
}

// IsTransient classifies err with the backend's classifier.
func (c Capabilities) IsTransient(err error) bool {
	if err == nil || c.Transient == nil {
		return false
	}
	return c.Transient(err)
}

// Descriptor registers one backend under a name.
type Descriptor struct {
	Name         string // name used in ConnInfo.Driver
	SQLDriver    string // name passed to sql.Open
	Capabilities Capabilities
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

// Registry stores driver descriptors by name. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	drivers map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{drivers: make(map[string]Descriptor)}
}

// Register adds a descriptor. Names are case-insensitive. A second descriptor
// with the same name fails with ErrDuplicateDriver.
func (r *Registry) Register(d Descriptor) error {
	name := strings.ToLower(strings.TrimSpace(d.Name))
	if name == "" {
		return alerr.New(alerr.ErrInvalidIdentifier, "driver name cannot be empty")
	}
	if d.SQLDriver == "" {
		return alerr.New(alerr.ErrInvalidIdentifier, "database/sql driver name cannot be empty").
			With("driver", name)
	}
	dl, ok := dialect.Get(d.Capabilities.Dialect)
	if !ok {
		return alerr.Newf(alerr.ErrUnsupportedDriver, "driver %q declares unknown dialect %q", name, d.Capabilities.Dialect).
			With("supported", strings.Join(dialect.Names(), ", "))
	}
	d.Name = name
	d.Capabilities.Dialect = dl.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.drivers[name]; exists {
		return alerr.Newf(alerr.ErrDuplicateDriver, "driver %q is already registered", name)
	}
	r.drivers[name] = d
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(d Descriptor) {
	if err := r.Register(d); err != nil {
		panic(err)
	}
}

// Lookup returns the descriptor registered under name. An unknown name fails
// with ErrUnsupportedDriver and suggests the closest registered name.
func (r *Registry) Lookup(name string) (Descriptor, error) {
	key := strings.ToLower(strings.TrimSpace(name))

	r.mu.RLock()
	d, ok := r.drivers[key]
	r.mu.RUnlock()

	if ok {
		return d, nil
	}

	names := r.Names()
	e := alerr.Newf(alerr.ErrUnsupportedDriver, "unsupported driver %q", name).
		With("supported", strings.Join(names, ", "))
	if hint := alerr.SuggestSimilar(key, names); hint != "" {
		e.WithHelp(hint)
	}
	return Descriptor{}, e
}

// Names returns the registered driver names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.drivers))
	for name := range r.drivers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Len returns the number of registered drivers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.drivers)
}

// -----------------------------------------------------------------------------
// Default registry
// -----------------------------------------------------------------------------

var (
	defaultOnce sync.Once
	defaultMu   sync.Mutex
	defaultReg  *Registry
)

// Default returns the process-wide registry holding the built-in drivers.
// It is built once, on first use, unless SetDefault installed another one.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		if defaultReg == nil {
			defaultReg = Builtin()
		}
	})

	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultReg
}

// SetDefault replaces the default registry and returns the previous one, so
// tests can restore it. Passing nil reinstates the built-in drivers.
func SetDefault(r *Registry) *Registry {
	Default()

	defaultMu.Lock()
	defer defaultMu.Unlock()

	prev := defaultReg
	if r == nil {
		r = Builtin()
	}
	defaultReg = r
	return prev
}
