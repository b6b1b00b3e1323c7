// SPDX-License-Identifier: MIT

// Package statefile exports the aggregate busy signal as an atomically
// written JSON file, so shell scripts and sidecars can poll it without
// talking to the API.
package statefile

import (
	"encoding/json"
	"fmt"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"

	oplog "github.com/ManuGH/opgate/internal/log"
	"github.com/ManuGH/opgate/internal/notify"
)

// Writer persists tracker snapshots to a fixed path.
type Writer struct {
	path   string
	logger zerolog.Logger
}

// NewWriter creates a state file writer for the given path.
func NewWriter(path string) *Writer {
	return &Writer{path: path, logger: oplog.WithComponent("statefile")}
}

// Write replaces the state file with the given snapshot. The write is atomic
// and durable: readers never observe a partially written file.
func (w *Writer) Write(snap notify.Snapshot) error {
	pending, err := renameio.NewPendingFile(w.path)
	if err != nil {
		return fmt.Errorf("create pending state file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			w.logger.Debug().Err(err).Msg("cleanup pending state file")
		}
	}()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace state file: %w", err)
	}
	return nil
}

// Follow consumes snapshots from ch until it is closed, writing each one.
// Intended to run as a goroutine fed by a Tracker listener channel.
func (w *Writer) Follow(ch <-chan notify.Snapshot) {
	for snap := range ch {
		if err := w.Write(snap); err != nil {
			w.logger.Error().
				Err(err).
				Str("path", w.path).
				Msg("failed to write state file")
		}
	}
}
