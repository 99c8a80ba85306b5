// Package server holds the HTTP handlers for the chat, match, corpus, and
// cache endpoints.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/medicobot/medicobot/internal/analytics"
	"github.com/medicobot/medicobot/internal/chat"
	"github.com/medicobot/medicobot/internal/chat/cache"
	"github.com/medicobot/medicobot/internal/corpus"
	"github.com/medicobot/medicobot/internal/corpus/manager"
	"github.com/medicobot/medicobot/internal/matcher"
	"github.com/medicobot/medicobot/pkg/config"
	apperrors "github.com/medicobot/medicobot/pkg/errors"
	"github.com/medicobot/medicobot/pkg/kafka"
	"github.com/medicobot/medicobot/pkg/logger"
	"github.com/medicobot/medicobot/pkg/metrics"
)

// Handler serves the public API. Cache, collector, repo, and producer are
// optional; the corresponding endpoints degrade when they are nil.
type Handler struct {
	manager    *manager.Manager
	responder  *chat.Responder
	cache      *cache.ReplyCache
	collector  *analytics.Collector
	repo       *corpus.Repository
	producer   *kafka.Producer
	matcherCfg config.MatcherConfig
	chatCfg    config.ChatConfig
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New creates a Handler.
func New(
	mgr *manager.Manager,
	responder *chat.Responder,
	replyCache *cache.ReplyCache,
	collector *analytics.Collector,
	repo *corpus.Repository,
	producer *kafka.Producer,
	matcherCfg config.MatcherConfig,
	chatCfg config.ChatConfig,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		manager:    mgr,
		responder:  responder,
		cache:      replyCache,
		collector:  collector,
		repo:       repo,
		producer:   producer,
		matcherCfg: matcherCfg,
		chatCfg:    chatCfg,
		metrics:    m,
		logger:     slog.Default().With("component", "api-handler"),
	}
}

type chatRequest struct {
	Message  string `json:"message"`
	Language string `json:"language"`
}

// Chat answers one user message through the responder's fallback chain.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	message, err := sanitizeMessage(req.Message, h.chatCfg.MaxMessageLength)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "message is required")
		return
	}
	language := req.Language
	if language == "" {
		language = h.chatCfg.DefaultLanguage
	}

	var reply *chat.Reply
	cacheHit := false
	if h.cache != nil {
		reply, cacheHit, err = h.cache.GetOrCompute(ctx, message, language, func() (*chat.Reply, error) {
			return h.responder.Respond(ctx, message, language)
		})
	} else {
		reply, err = h.responder.Respond(ctx, message, language)
	}
	if err != nil {
		log.Error("chat failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("chat answered",
		"strategy", reply.Strategy,
		"matches", len(reply.Matches),
		"cache_hit", cacheHit,
		"latency_ms", latencyMs,
	)
	if h.metrics != nil {
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}
	if h.collector != nil {
		eventType := analytics.EventCacheMiss
		if cacheHit {
			eventType = analytics.EventCacheHit
		}
		event := analytics.ChatEvent{
			Type:      eventType,
			Query:     message,
			Language:  language,
			Strategy:  string(reply.Strategy),
			Matches:   len(reply.Matches),
			LatencyMs: latencyMs,
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestIDFromContext(ctx),
		}
		if len(reply.Matches) > 0 {
			event.TopConfidence = reply.Matches[0].Confidence
		}
		h.collector.Track(event)
	}

	h.writeJSON(w, http.StatusOK, reply)
}

type matchRequest struct {
	Symptoms      string   `json:"symptoms"`
	TopK          int      `json:"top_k"`
	MinConfidence *float64 `json:"min_confidence"`
}

type matchResponse struct {
	Query   string          `json:"query"`
	Matches []matcher.Match `json:"matches"`
}

// Match ranks the corpus against a free-text symptom description.
func (h *Handler) Match(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	symptoms, err := sanitizeMessage(req.Symptoms, h.chatCfg.MaxMessageLength)
	if err != nil {
		h.writeError(w, apperrors.HTTPStatusCode(err), "symptoms is required")
		return
	}
	topK := req.TopK
	if topK <= 0 {
		topK = h.matcherCfg.TopK
	}
	minConfidence := h.matcherCfg.MinConfidence
	if req.MinConfidence != nil {
		minConfidence = *req.MinConfidence
	}

	ix := h.manager.Index()
	if ix == nil {
		h.writeError(w, http.StatusServiceUnavailable, "corpus index not ready")
		return
	}
	matches, err := ix.Match(symptoms, topK, minConfidence)
	if err != nil {
		if errors.Is(err, matcher.ErrIndexNotBuilt) {
			h.writeError(w, http.StatusServiceUnavailable, "corpus index not ready")
			return
		}
		log.Error("match failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "match failed")
		return
	}
	if matches == nil {
		matches = []matcher.Match{}
	}

	latency := time.Since(start)
	if h.metrics != nil {
		resultType := "hit"
		if len(matches) == 0 {
			resultType = "zero_result"
		}
		h.metrics.MatchQueriesTotal.WithLabelValues(resultType).Inc()
		h.metrics.MatchLatency.Observe(latency.Seconds())
		if len(matches) > 0 {
			h.metrics.MatchConfidence.Observe(matches[0].Confidence)
		}
	}
	if h.collector != nil {
		eventType := analytics.EventChat
		if len(matches) == 0 {
			eventType = analytics.EventZeroResult
		}
		event := analytics.ChatEvent{
			Type:      eventType,
			Query:     symptoms,
			Strategy:  string(chat.StrategyMatch),
			Matches:   len(matches),
			LatencyMs: latency.Milliseconds(),
			Timestamp: time.Now().UTC(),
			RequestID: logger.RequestIDFromContext(ctx),
		}
		if len(matches) > 0 {
			event.TopConfidence = matches[0].Confidence
		}
		h.collector.Track(event)
	}

	h.writeJSON(w, http.StatusOK, matchResponse{Query: symptoms, Matches: matches})
}

// CacheStats reports reply-cache hit rates.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

// CacheInvalidate drops every cached reply.
func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// CorpusReload rebuilds the matcher index from the corpus source and drops
// the reply cache so no stale matches survive the rebuild.
func (h *Handler) CorpusReload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.manager.Reload(r.Context()); err != nil {
		h.logger.Error("corpus reload failed", "error", err)
		if h.metrics != nil {
			h.metrics.CorpusRebuildsTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, http.StatusServiceUnavailable, "corpus reload failed")
		return
	}
	ix := h.manager.Index()
	if h.metrics != nil {
		h.metrics.CorpusRebuildsTotal.WithLabelValues("success").Inc()
		h.metrics.CorpusDiseases.Set(float64(ix.DocCount()))
		h.metrics.CorpusVocabulary.Set(float64(ix.VocabSize()))
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Warn("reply cache invalidation after reload failed", "error", err)
		}
	}
	if h.collector != nil {
		h.collector.Track(analytics.CorpusEvent{
			Type:            analytics.EventCorpusReload,
			Source:          "api",
			Records:         ix.DocCount(),
			VocabularyTerms: ix.VocabSize(),
			LatencyMs:       time.Since(start).Milliseconds(),
			Timestamp:       time.Now().UTC(),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "reloaded",
		"diseases":   ix.DocCount(),
		"vocabulary": ix.VocabSize(),
	})
}

// ListDiseases returns the corpus as stored in Postgres.
func (h *Handler) ListDiseases(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "corpus store is not configured")
		return
	}
	diseases, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.Error("listing diseases failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "listing diseases failed")
		return
	}
	if diseases == nil {
		diseases = []corpus.Disease{}
	}
	h.writeJSON(w, http.StatusOK, diseases)
}

// UpsertDisease creates or updates one corpus record and notifies every
// instance through the corpus update topic so they all rebuild.
func (h *Handler) UpsertDisease(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		h.writeError(w, http.StatusServiceUnavailable, "corpus store is not configured")
		return
	}
	var d corpus.Disease
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if d.Name == "" || d.Symptoms == "" {
		h.writeError(w, http.StatusBadRequest, "name and symptoms are required")
		return
	}
	if err := h.repo.Upsert(r.Context(), d); err != nil {
		h.logger.Error("upserting disease failed", "name", d.Name, "error", err)
		h.writeError(w, http.StatusInternalServerError, "upserting disease failed")
		return
	}
	if h.producer != nil {
		count, err := h.repo.Count(r.Context())
		if err != nil {
			h.logger.Warn("counting diseases failed", "error", err)
		}
		event := manager.UpdateEvent{
			Source:    "api",
			Records:   count,
			UpdatedAt: time.Now().UTC(),
		}
		if err := h.producer.Publish(r.Context(), kafka.Event{Key: d.Name, Value: event}); err != nil {
			h.logger.Error("publishing corpus update failed", "error", err)
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "stored", "name": d.Name})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
