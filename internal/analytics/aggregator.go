package analytics

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medicobot/medicobot/pkg/kafka"
)

// AggregatedStats is the usage snapshot served by the analytics endpoint.
type AggregatedStats struct {
	TotalChats        int64            `json:"total_chats"`
	RepliesByStrategy map[string]int64 `json:"replies_by_strategy"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	CorpusReloads     int64            `json:"corpus_reloads"`
	CorpusRecords     int              `json:"corpus_records"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	ChatsPerMinute    float64          `json:"chats_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator consumes analytics events from Kafka and maintains in-memory
// aggregates. Zero-result queries are kept separately: they show where the
// corpus has gaps.
type Aggregator struct {
	mu                sync.RWMutex
	totalChats        atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	zeroResults       atomic.Int64
	corpusReloads     atomic.Int64
	corpusRecords     atomic.Int64
	strategyCounts    map[string]int64
	latencies         []int64
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator creates an Aggregator fed by the given consumer.
func NewAggregator(consumer *kafka.Consumer) *Aggregator {
	return &Aggregator{
		strategyCounts:    make(map[string]int64),
		latencies:         make([]int64, 0, 10000),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		consumer:          consumer,
		logger:            slog.Default().With("component", "analytics-aggregator"),
	}
}

// Start runs the consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("analytics aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns a Kafka handler that dispatches decoded events into
// the aggregator. Undecodable events are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		var probe struct {
			Type EventType `json:"type"`
		}
		if err := json.Unmarshal(value, &probe); err != nil {
			agg.logger.Error("failed to decode analytics event", "error", err)
			return nil
		}
		if probe.Type == EventCorpusReload {
			event, err := kafka.DecodeJSON[CorpusEvent](value)
			if err != nil {
				agg.logger.Error("failed to decode corpus event", "error", err)
				return nil
			}
			agg.recordCorpusEvent(event)
			return nil
		}
		event, err := kafka.DecodeJSON[ChatEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode chat event", "error", err)
			return nil
		}
		agg.recordChatEvent(event)
		return nil
	}
}

func (a *Aggregator) recordChatEvent(event ChatEvent) {
	a.totalChats.Add(1)
	if event.CacheHit {
		a.cacheHits.Add(1)
	} else {
		a.cacheMisses.Add(1)
	}
	if event.Matches == 0 {
		a.zeroResults.Add(1)
	}

	a.mu.Lock()
	a.strategyCounts[event.Strategy]++
	a.latencies = append(a.latencies, event.LatencyMs)
	a.queryCounts[event.Query]++
	if event.Matches == 0 {
		a.zeroResultQueries[event.Query]++
	}
	a.mu.Unlock()
}

func (a *Aggregator) recordCorpusEvent(event CorpusEvent) {
	a.corpusReloads.Add(1)
	a.corpusRecords.Store(int64(event.Records))
}

// Stats returns a snapshot of the current aggregates.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalChats:      a.totalChats.Load(),
		CacheHits:       a.cacheHits.Load(),
		CacheMisses:     a.cacheMisses.Load(),
		ZeroResultCount: a.zeroResults.Load(),
		CorpusReloads:   a.corpusReloads.Load(),
		CorpusRecords:   int(a.corpusRecords.Load()),
	}
	stats.RepliesByStrategy = make(map[string]int64, len(a.strategyCounts))
	for strategy, count := range a.strategyCounts {
		stats.RepliesByStrategy[strategy] = count
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, 10)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, 10)
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.ChatsPerMinute = float64(stats.TotalChats) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}
