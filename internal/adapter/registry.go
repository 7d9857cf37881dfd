package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Factory builds an Adapter from connection strings and an option bag.
// It must validate the options and never touch the database.
type Factory func(connStr []string, opts Options, logger *slog.Logger) (Adapter, error)

type registration struct {
	factory Factory
	decls   []Option
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]registration)
)

// Register adds a backend. Called from the backends' init functions.
func Register(name string, f Factory, decls []Option) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = registration{factory: f, decls: decls}
}

// Lookup returns the factory registered under name.
func Lookup(name string) (Factory, error) {
	registryMu.RLock()
	r, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownAdapterError{Type: name, Available: Names()}
	}
	return r.factory, nil
}

// New looks up name and builds an adapter. A nil logger discards output.
func New(name string, connStr []string, opts Options, logger *slog.Logger) (Adapter, error) {
	f, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("adapter", name)
	if unknown := opts.Unknown(Declarations(name)); len(unknown) > 0 {
		logger.Debug("ignoring unknown adapter options", "options", unknown)
	}
	return f(connStr, opts, logger)
}

// Names returns the registered backend names, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the options declared by the named backend.
func Declarations(name string) []Option {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name].decls
}

// UnknownAdapterError is returned when no backend has the requested name.
type UnknownAdapterError struct {
	Type      string
	Available []string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter %q (available: %v)", e.Type, e.Available)
}
