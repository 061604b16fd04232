// Package casregistry holds the mirror backends linked into a binary.
//
// Backends register themselves in init() and are enabled by importing the
// backend package (usually as a blank import). Each backend is opened from a
// string map, either a casconfig backend entry or flags registered with
// RegisterFlags.
package casregistry

import (
	"context"
	"flag"
	"fmt"
	"sort"
	"sync"

	"metadisk.org/metatool/storage"
)

// Usage restricts which programs should accept a given backend.
type Usage uint8

const (
	// UsageCLI marks backends available to metatool downloads.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends metatool-casd can serve.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }

// Key documents one config key a backend accepts.
type Key struct {
	Name string
	Help string
}

// Backend is a build-time plugin that can open a storage.CAS implementation.
type Backend struct {
	Name        string
	Description string
	Usage       Usage
	Keys        []Key

	// Open constructs the CAS from cfg. It returns an optional close function.
	Open func(ctx context.Context, cfg map[string]string) (storage.CAS, func() error, error)
}

var (
	mu       sync.RWMutex
	backends = map[string]Backend{}
)

// Register registers a backend.
func Register(b Backend) error {
	if b.Name == "" {
		return fmt.Errorf("casregistry: backend name is required")
	}
	if b.Open == nil {
		return fmt.Errorf("casregistry: backend %q missing Open", b.Name)
	}
	if b.Usage == 0 {
		return fmt.Errorf("casregistry: backend %q missing Usage", b.Name)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("casregistry: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// MustRegister is like Register but panics on error.
func MustRegister(b Backend) {
	if err := Register(b); err != nil {
		panic(err)
	}
}

// List returns backends matching usage, sorted by name.
func List(usage Usage) []Backend {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Backend, 0, len(backends))
	for _, b := range backends {
		if b.Usage.allows(usage) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns backend names matching usage, sorted.
func Names(usage Usage) []string {
	bs := List(usage)
	n := make([]string, 0, len(bs))
	for _, b := range bs {
		n = append(n, b.Name)
	}
	return n
}

// Flags holds values of flags registered by RegisterFlags.
type Flags map[string]map[string]*string

// RegisterFlags adds a --<backend>-<key> string flag for every key of every
// backend matching usage.
func RegisterFlags(fs *flag.FlagSet, usage Usage) Flags {
	out := Flags{}
	for _, b := range List(usage) {
		vals := make(map[string]*string, len(b.Keys))
		for _, k := range b.Keys {
			vals[k.Name] = fs.String(b.Name+"-"+k.Name, "", k.Help+" (for --backend="+b.Name+")")
		}
		out[b.Name] = vals
	}
	return out
}

// Config returns the non-empty flag values of backend name as a config map.
func (f Flags) Config(name string) map[string]string {
	cfg := map[string]string{}
	for k, v := range f[name] {
		if v != nil && *v != "" {
			cfg[k] = *v
		}
	}
	return cfg
}

// Open opens the named backend if it exists and matches usage.
func Open(ctx context.Context, name string, usage Usage, cfg map[string]string) (storage.CAS, func() error, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("casregistry: unknown backend %q", name)
	}
	if !b.Usage.allows(usage) {
		return nil, nil, fmt.Errorf("casregistry: backend %q not supported in this binary", name)
	}
	if cfg == nil {
		cfg = map[string]string{}
	}
	return b.Open(ctx, cfg)
}
