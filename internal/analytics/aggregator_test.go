package analytics_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/medicobot/medicobot/internal/analytics"
)

func track(t *testing.T, agg *analytics.Aggregator, event any) {
	t.Helper()
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := analytics.HandleEvent(agg)(context.Background(), []byte("analytics"), payload); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
}

func TestAggregatorChatEvents(t *testing.T) {
	agg := analytics.NewAggregator(nil)

	track(t, agg, analytics.ChatEvent{
		Type:      analytics.EventCacheMiss,
		Query:     "fever cough",
		Strategy:  "match",
		Matches:   2,
		LatencyMs: 12,
		Timestamp: time.Now().UTC(),
	})
	track(t, agg, analytics.ChatEvent{
		Type:      analytics.EventCacheHit,
		Query:     "fever cough",
		Strategy:  "match",
		Matches:   2,
		LatencyMs: 1,
		CacheHit:  true,
		Timestamp: time.Now().UTC(),
	})
	track(t, agg, analytics.ChatEvent{
		Type:      analytics.EventZeroResult,
		Query:     "quantum flux",
		Strategy:  "default",
		Matches:   0,
		LatencyMs: 8,
		Timestamp: time.Now().UTC(),
	})

	stats := agg.Stats()
	if stats.TotalChats != 3 {
		t.Errorf("TotalChats = %d, want 3", stats.TotalChats)
	}
	if stats.CacheHits != 1 || stats.CacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d, want 1/2", stats.CacheHits, stats.CacheMisses)
	}
	if stats.ZeroResultCount != 1 {
		t.Errorf("ZeroResultCount = %d, want 1", stats.ZeroResultCount)
	}
	if stats.RepliesByStrategy["match"] != 2 || stats.RepliesByStrategy["default"] != 1 {
		t.Errorf("unexpected strategy counts: %v", stats.RepliesByStrategy)
	}
	if len(stats.TopQueries) == 0 || stats.TopQueries[0].Query != "fever cough" {
		t.Errorf("unexpected top queries: %v", stats.TopQueries)
	}
	if len(stats.ZeroResultQueries) != 1 || stats.ZeroResultQueries[0].Query != "quantum flux" {
		t.Errorf("unexpected zero-result queries: %v", stats.ZeroResultQueries)
	}
	if stats.AvgLatencyMs != 7 {
		t.Errorf("AvgLatencyMs = %v, want 7", stats.AvgLatencyMs)
	}
}

func TestAggregatorCorpusEvents(t *testing.T) {
	agg := analytics.NewAggregator(nil)

	track(t, agg, analytics.CorpusEvent{
		Type:      analytics.EventCorpusReload,
		Source:    "corpusctl",
		Records:   41,
		Timestamp: time.Now().UTC(),
	})

	stats := agg.Stats()
	if stats.CorpusReloads != 1 {
		t.Errorf("CorpusReloads = %d, want 1", stats.CorpusReloads)
	}
	if stats.CorpusRecords != 41 {
		t.Errorf("CorpusRecords = %d, want 41", stats.CorpusRecords)
	}
	if stats.TotalChats != 0 {
		t.Errorf("corpus events must not count as chats, got %d", stats.TotalChats)
	}
}

func TestAggregatorSkipsUndecodableEvents(t *testing.T) {
	agg := analytics.NewAggregator(nil)
	if err := analytics.HandleEvent(agg)(context.Background(), nil, []byte("not json")); err != nil {
		t.Fatalf("undecodable events must not error: %v", err)
	}
	if stats := agg.Stats(); stats.TotalChats != 0 {
		t.Errorf("TotalChats = %d, want 0", stats.TotalChats)
	}
}
