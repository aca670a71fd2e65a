// vaultkeep - Encrypted Incremental Backup Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vaultkeep

package destination

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds factory under tag to the global provider registry.
// Intended to be called from a provider package's init function. Panics
// if tag is already registered, since two providers silently fighting
// over the same tag is always a build-time mistake, not a runtime
// condition to handle gracefully.
func Register(tag string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[tag]; exists {
		panic(fmt.Sprintf("destination: provider tag %q already registered", tag))
	}
	registry[tag] = factory
}

// Open resolves tag to a registered Factory and constructs a Provider
// from config.
func Open(tag string, config map[string]string) (Provider, error) {
	registryMu.RLock()
	factory, ok := registry[tag]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("destination: no provider registered for tag %q", tag)
	}
	return factory(config)
}

// RegisteredTags returns every currently registered provider tag, sorted,
// for diagnostics and config validation.
func RegisteredTags() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
