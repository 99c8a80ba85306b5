// Package manager owns the lifecycle of the matcher index: it builds the
// index from a corpus source at startup, serves the current immutable index
// to concurrent readers, and rebuilds the whole index from scratch whenever
// the corpus changes. There is no incremental update: a reload discards the
// previous vocabulary and vectors entirely.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/medicobot/medicobot/internal/corpus"
	"github.com/medicobot/medicobot/internal/matcher"
	"github.com/medicobot/medicobot/pkg/kafka"
)

// Source fetches the full disease corpus from its backing store.
type Source func(ctx context.Context) ([]corpus.Disease, error)

// UpdateEvent is the Kafka payload published after the diseases table
// changes. The payload is informational; any event triggers a full reload.
type UpdateEvent struct {
	Source    string    `json:"source"`
	Records   int       `json:"records"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Manager builds the matcher index and swaps it atomically on reload.
type Manager struct {
	source Source
	index  atomic.Pointer[matcher.Index]
	logger *slog.Logger
}

// New creates a Manager for the given corpus source. The index is nil until
// the first successful Reload.
func New(source Source) *Manager {
	return &Manager{
		source: source,
		logger: slog.Default().With("component", "corpus-manager"),
	}
}

// Reload fetches the corpus and rebuilds the index, replacing the previous
// one atomically. On failure the previous index stays in service.
func (m *Manager) Reload(ctx context.Context) error {
	start := time.Now()
	diseases, err := m.source(ctx)
	if err != nil {
		return fmt.Errorf("loading corpus: %w", err)
	}
	ix, err := matcher.Build(diseases)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	m.index.Store(ix)
	m.logger.Info("corpus index rebuilt",
		"diseases", ix.DocCount(),
		"vocabulary", ix.VocabSize(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

// Index returns the current index, or nil when no build has succeeded yet.
// The returned index is immutable and safe for concurrent use.
func (m *Manager) Index() *matcher.Index {
	return m.index.Load()
}

// UpdateHandler returns a Kafka message handler that rebuilds the index on
// every corpus update event.
func (m *Manager) UpdateHandler() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[UpdateEvent](value)
		if err != nil {
			m.logger.Warn("undecodable corpus update event, reloading anyway", "error", err)
		} else {
			m.logger.Info("corpus update received",
				"source", event.Source,
				"records", event.Records,
			)
		}
		if err := m.Reload(ctx); err != nil {
			m.logger.Error("corpus reload failed", "error", err)
			return err
		}
		return nil
	}
}
