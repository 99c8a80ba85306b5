// Package analytics streams chat and corpus events through Kafka and
// aggregates them into service-level usage statistics.
package analytics

import "time"

type EventType string

const (
	EventChat         EventType = "chat"
	EventCacheHit     EventType = "cache_hit"
	EventCacheMiss    EventType = "cache_miss"
	EventZeroResult   EventType = "zero_result"
	EventCorpusReload EventType = "corpus_reload"
)

// ChatEvent records one answered chat or match request.
type ChatEvent struct {
	Type          EventType `json:"type"`
	Query         string    `json:"query"`
	Language      string    `json:"language"`
	Strategy      string    `json:"strategy"`
	Matches       int       `json:"matches"`
	TopConfidence float64   `json:"top_confidence"`
	LatencyMs     int64     `json:"latency_ms"`
	CacheHit      bool      `json:"cache_hit"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id"`
}

// CorpusEvent records one index rebuild.
type CorpusEvent struct {
	Type            EventType `json:"type"`
	Source          string    `json:"source"`
	Records         int       `json:"records"`
	VocabularyTerms int       `json:"vocabulary_terms"`
	LatencyMs       int64     `json:"latency_ms"`
	Timestamp       time.Time `json:"timestamp"`
}
