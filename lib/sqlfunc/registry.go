// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sqlfunc

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"zombiezen.com/go/sqlite"

	"github.com/bureau-foundation/sqlrt/lib/sqlvalue"
)

// ConnectionSet enumerates the native connections a registration must
// reach.
type ConnectionSet interface {
	// EachConn calls fn once per connection while holding exclusive
	// access to it, stopping at the first error.
	EachConn(fn func(conn *sqlite.Conn) error) error
}

// Config holds the parameters for creating a Registry.
type Config struct {
	// Connections is the set every registration is applied to.
	// Required.
	Connections ConnectionSet

	// Codec encodes function results. Defaults to sqlvalue.Default().
	Codec *sqlvalue.Codec

	// Logger receives registration and panic reports. If nil, a no-op
	// logger is used.
	Logger *slog.Logger
}

// Registry is the table of application functions of one database. It
// is safe for concurrent use, except that mutations must not be made
// from inside an application function: they visit every connection,
// including the one blocked on the running call.
type Registry struct {
	connections ConnectionSet
	codec       *sqlvalue.Codec
	logger      *slog.Logger

	// mu serializes mutations. Readers load current without locking.
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
}

// snapshot is an immutable view of the registry. Mutations build a
// new snapshot and swap it in.
type snapshot struct {
	functions map[string]*function
}

// function holds every arity registered under one name.
type function struct {
	name    string
	options Options
	arities map[int]*registration

	// binding and cancel are set for functions registered against a
	// Binding.
	binding *Binding
	cancel  func()
}

type registration struct {
	nargs  int
	flags  Flags
	scalar scalarFunc
}

type scalarFunc = func(ctx sqlite.Context, args []sqlite.Value) (sqlite.Value, error)

// Info describes one registered (name, argument count).
type Info struct {
	Name string

	// NArgs is the argument count, or AnyArgs.
	NArgs int

	Flags Flags

	// Bound is set when the function follows a Binding.
	Bound bool
}

// NewRegistry returns an empty registry over config.Connections.
func NewRegistry(config Config) *Registry {
	codec := config.Codec
	if codec == nil {
		codec = sqlvalue.Default()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	registry := &Registry{
		connections: config.Connections,
		codec:       codec,
		logger:      logger,
	}
	registry.current.Store(&snapshot{functions: map[string]*function{}})
	return registry
}

// Register installs fn under name for every arity in options.Arity,
// which must be set. Arities already registered under name and not
// listed stay registered. A previous Binding subscription for name is
// cancelled.
func (r *Registry) Register(name string, fn Func, options Options) error {
	if options.Arity.IsZero() {
		return fmt.Errorf("sqlfunc: register %s: Options.Arity is required for a Func", name)
	}
	return r.RegisterFunc(name, fn, options)
}

// RegisterFunc is Register for any Go function. When options.Arity is
// empty the arity is inferred with Infer.
func (r *Registry) RegisterFunc(name string, fn any, options Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.current.Load().functions[name]
	next, err := r.install("register", name, fn, options, previous, true)
	if err != nil {
		return err
	}
	if previous != nil && previous.cancel != nil {
		previous.cancel()
	}
	r.publish(name, next)
	return nil
}

// RegisterBinding registers the current value of binding under name
// and re-registers on every later Set. Arities previously registered
// under name are replaced.
func (r *Registry) RegisterBinding(name string, binding *Binding, options Options) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Subscribe before reading the value so a concurrent Set is either
	// observed here or delivered to Update, which waits for mu.
	cancel := binding.Subscribe(func(value any) error {
		return r.Update(name, value)
	})

	previous := r.current.Load().functions[name]
	next, err := r.install("register", name, binding.Get(), options, previous, false)
	if err != nil {
		cancel()
		return err
	}
	if previous != nil && previous.cancel != nil {
		previous.cancel()
	}
	next.binding = binding
	next.cancel = cancel
	r.publish(name, next)
	return nil
}

// Update replaces the implementation of name with fn, tearing down
// every registered arity and registering fn with the options of the
// original registration. Binding subscriptions call Update.
func (r *Registry) Update(name string, fn any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.current.Load().functions[name]
	if previous == nil {
		return fmt.Errorf("%w: %s", ErrNotRegistered, name)
	}
	next, err := r.install("update", name, fn, previous.options, previous, false)
	if err != nil {
		return err
	}
	next.binding = previous.binding
	next.cancel = previous.cancel
	r.publish(name, next)
	return nil
}

// Remove unregisters one arity of name. Other arities stay callable.
// Removing an arity that is not registered is a no-op. Removing the
// last arity also cancels a Binding subscription.
func (r *Registry) Remove(name string, nargs int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.current.Load().functions[name]
	if previous == nil {
		return nil
	}
	if _, ok := previous.arities[nargs]; !ok {
		return nil
	}
	if err := r.apply(name, nargs, 0, r.tombstone(name, nargs)); err != nil {
		return &RegistrationError{Op: "remove", Name: name, NArgs: nargs, Err: err}
	}

	next := previous.clone()
	delete(next.arities, nargs)
	if len(next.arities) == 0 {
		if next.cancel != nil {
			next.cancel()
		}
		next = nil
	}
	r.publish(name, next)
	RegistrationsTotal.WithLabelValues("remove").Inc()
	r.logger.Info("function removed", "name", name, "nargs", formatNArgs(nargs))
	return nil
}

// RemoveAll unregisters every arity of name and cancels its Binding
// subscription, if any. Removing an unknown name is a no-op.
func (r *Registry) RemoveAll(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.current.Load().functions[name]
	if previous == nil {
		return nil
	}
	for _, nargs := range previous.sortedNArgs() {
		if err := r.apply(name, nargs, 0, r.tombstone(name, nargs)); err != nil {
			return &RegistrationError{Op: "remove", Name: name, NArgs: nargs, Err: err}
		}
	}
	if previous.cancel != nil {
		previous.cancel()
	}
	r.publish(name, nil)
	RegistrationsTotal.WithLabelValues("remove").Inc()
	r.logger.Info("function removed", "name", name, "nargs", "all")
	return nil
}

// Get returns the registration of (name, nargs).
func (r *Registry) Get(name string, nargs int) (Info, bool) {
	function := r.current.Load().functions[name]
	if function == nil {
		return Info{}, false
	}
	registration, ok := function.arities[nargs]
	if !ok {
		return Info{}, false
	}
	return function.info(registration), true
}

// Entries returns every registration of name ordered by argument
// count, variadic first.
func (r *Registry) Entries(name string) []Info {
	function := r.current.Load().functions[name]
	if function == nil {
		return nil
	}
	var entries []Info
	for _, nargs := range function.sortedNArgs() {
		entries = append(entries, function.info(function.arities[nargs]))
	}
	return entries
}

// Names returns the sorted names with at least one registration.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.current.Load().functions))
}

// install resolves fn, applies it to every connection for each arity,
// and returns the function entry to publish. With merge, arities of
// previous not covered by the new registration are kept; without,
// they are replaced by tombstones. Must be called with mu held.
func (r *Registry) install(op, name string, fn any, options Options, previous *function, merge bool) (*function, error) {
	if name == "" {
		return nil, fmt.Errorf("sqlfunc: %s: empty function name", op)
	}
	adapted, arity, err := resolve(fn, options)
	if err != nil {
		return nil, fmt.Errorf("sqlfunc: %s %s: %w", op, name, err)
	}
	nargsList, err := arity.nargs()
	if err != nil {
		return nil, fmt.Errorf("sqlfunc: %s %s: %w", op, name, err)
	}
	if unsupported := options.Flags() &^ SupportedFlags; unsupported != 0 {
		return nil, fmt.Errorf("sqlfunc: %s %s: %w: %s", op, name, ErrUnsupportedFlags, unsupported)
	}

	next := &function{name: name, options: options, arities: map[int]*registration{}}
	if merge && previous != nil {
		maps.Copy(next.arities, previous.arities)
	}

	flags := options.Flags()
	for _, nargs := range nargsList {
		entry := &registration{nargs: nargs, flags: flags, scalar: r.trampoline(name, adapted)}
		if err := r.apply(name, nargs, flags, entry.scalar); err != nil {
			return nil, &RegistrationError{Op: op, Name: name, NArgs: nargs, Err: err}
		}
		next.arities[nargs] = entry
	}

	if !merge && previous != nil {
		for _, nargs := range previous.sortedNArgs() {
			if _, kept := next.arities[nargs]; kept {
				continue
			}
			if err := r.apply(name, nargs, 0, r.tombstone(name, nargs)); err != nil {
				return nil, &RegistrationError{Op: op, Name: name, NArgs: nargs, Err: err}
			}
		}
	}

	RegistrationsTotal.WithLabelValues(op).Inc()
	r.logger.Info("function registered",
		"op", op,
		"name", name,
		"arity", arity.String(),
		"flags", flags.String(),
	)
	return next, nil
}

// apply installs scalar as (name, nargs) on every connection.
func (r *Registry) apply(name string, nargs int, flags Flags, scalar scalarFunc) error {
	return r.connections.EachConn(func(conn *sqlite.Conn) error {
		return conn.CreateFunction(name, &sqlite.FunctionImpl{
			NArgs:         nargs,
			Scalar:        scalar,
			Deterministic: flags.Has(FlagDeterministic),
			AllowIndirect: !flags.Has(FlagDirectOnly),
		})
	})
}

// publish swaps in a snapshot where name maps to next, or where name
// is absent when next is nil. Must be called with mu held.
func (r *Registry) publish(name string, next *function) {
	functions := maps.Clone(r.current.Load().functions)
	if next == nil {
		delete(functions, name)
	} else {
		functions[name] = next
	}
	r.current.Store(&snapshot{functions: functions})
}

func (f *function) clone() *function {
	copied := *f
	copied.arities = maps.Clone(f.arities)
	return &copied
}

func (f *function) sortedNArgs() []int {
	return slices.Sorted(maps.Keys(f.arities))
}

func (f *function) info(entry *registration) Info {
	return Info{
		Name:  f.name,
		NArgs: entry.nargs,
		Flags: entry.flags,
		Bound: f.binding != nil,
	}
}
