// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"sort"
	"sync"
)

// ConfigFieldSpec describes a config field that can be read and written by name,
// as `shiftdesk config set <name> <value>` does.
type ConfigFieldSpec struct {
	Name string
	// Validate checks a raw value before Setter is called. Optional.
	Validate func(value string) error
	Setter   func(cfg *Config, value string) error
	Getter   func(cfg *Config) string
	Unsetter func(cfg *Config)
}

var (
	fieldsMu sync.RWMutex
	fields   = map[string]ConfigFieldSpec{}
)

// RegisterConfigField registers a field. It panics on an invalid or duplicate spec.
func RegisterConfigField(spec ConfigFieldSpec) {
	if spec.Name == "" {
		panic("config field name cannot be empty")
	}
	if spec.Setter == nil || spec.Getter == nil || spec.Unsetter == nil {
		panic(fmt.Sprintf("config field %q must have a setter, getter and unsetter", spec.Name))
	}

	fieldsMu.Lock()
	defer fieldsMu.Unlock()
	if _, exists := fields[spec.Name]; exists {
		panic(fmt.Sprintf("config field %q is already registered", spec.Name))
	}
	fields[spec.Name] = spec
}

// GetConfigField looks up a registered field.
func GetConfigField(name string) (ConfigFieldSpec, error) {
	fieldsMu.RLock()
	defer fieldsMu.RUnlock()
	spec, ok := fields[name]
	if !ok {
		return ConfigFieldSpec{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return spec, nil
}

// ListConfigFields returns the registered field names, sorted.
func ListConfigFields() []string {
	fieldsMu.RLock()
	defer fieldsMu.RUnlock()
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetField validates value and applies it to cfg.
func SetField(cfg *Config, name, value string) error {
	spec, err := GetConfigField(name)
	if err != nil {
		return err
	}
	if spec.Validate != nil {
		if err := spec.Validate(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if err := spec.Setter(cfg, value); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// UnsetField resets a field to its zero value; defaults are re-applied on load.
func UnsetField(cfg *Config, name string) error {
	spec, err := GetConfigField(name)
	if err != nil {
		return err
	}
	spec.Unsetter(cfg)
	return nil
}
