// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
)

var (
	// ErrNoOperations is returned when the configuration tracks nothing.
	ErrNoOperations = errors.New("no operations configured")

	// ErrDuplicateOperation is returned when two operations share a name.
	ErrDuplicateOperation = errors.New("duplicate operation name")
)

// Validate checks the configuration for internal consistency.
func Validate(cfg Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("listen: address must not be empty")
	}
	if len(cfg.Operations) == 0 {
		return ErrNoOperations
	}

	seen := make(map[string]struct{}, len(cfg.Operations))
	for i, op := range cfg.Operations {
		if op.Name == "" {
			return fmt.Errorf("operations[%d]: name must not be empty", i)
		}
		if _, dup := seen[op.Name]; dup {
			return fmt.Errorf("operations[%d]: %w: %q", i, ErrDuplicateOperation, op.Name)
		}
		seen[op.Name] = struct{}{}

		switch op.Source {
		case SourceManual, SourceStatic:
			if op.Path != "" {
				return fmt.Errorf("operations[%d] (%s): path is only valid for file sources", i, op.Name)
			}
		case SourceFile:
			if op.Path == "" {
				return fmt.Errorf("operations[%d] (%s): file source requires a path", i, op.Name)
			}
		default:
			return fmt.Errorf("operations[%d] (%s): unknown source kind %q", i, op.Name, op.Source)
		}
	}

	if cfg.Redis != nil && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis: addr must not be empty when redis is configured")
	}
	return nil
}
