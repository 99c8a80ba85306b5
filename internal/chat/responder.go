// Package chat implements the conversational layer on top of the symptom
// matcher. A Responder answers one user message by walking a fallback chain:
// the TF-IDF matcher first, then a keyword lookup, then a generative oracle,
// and finally a fixed consult-a-doctor guidance message. The oracle,
// translator, and lookup are collaborator functions supplied by the caller;
// the package never talks to external services itself.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medicobot/medicobot/internal/matcher"
	"github.com/medicobot/medicobot/pkg/config"
	"github.com/medicobot/medicobot/pkg/metrics"
	"github.com/medicobot/medicobot/pkg/resilience"
)

// Strategy names which stage of the fallback chain produced a reply.
type Strategy string

const (
	StrategyMatch   Strategy = "match"
	StrategyLookup  Strategy = "lookup"
	StrategyOracle  Strategy = "oracle"
	StrategyDefault Strategy = "default"
)

// DefaultGuidance is the final fallback reply when no stage can answer.
const DefaultGuidance = "I could not confidently match your symptoms to a known condition. " +
	"Please consult a doctor for a proper diagnosis."

// Translator converts text between languages. from and to are language codes.
type Translator func(ctx context.Context, text, from, to string) (string, error)

// Oracle asks a generative model for a free-form answer to the prompt.
type Oracle func(ctx context.Context, prompt string) (string, error)

// Lookup consults a keyword knowledge base. ok is false when the base has no
// entry for the query.
type Lookup func(ctx context.Context, query string) (answer string, ok bool, err error)

// IndexProvider returns the current matcher index, or nil when none has been
// built yet.
type IndexProvider func() *matcher.Index

// Reply is one answered chat message.
type Reply struct {
	Text     string          `json:"text"`
	Strategy Strategy        `json:"strategy"`
	Language string          `json:"language"`
	Matches  []matcher.Match `json:"matches,omitempty"`
}

// Deps bundles the responder's collaborators. Index is required; the rest are
// optional and their stages are skipped when nil.
type Deps struct {
	Index      IndexProvider
	Translator Translator
	Oracle     Oracle
	Lookup     Lookup
	Metrics    *metrics.Metrics
}

// Responder answers chat messages through the fallback chain.
type Responder struct {
	deps       Deps
	cfg        config.ChatConfig
	matcherCfg config.MatcherConfig
	breaker    *resilience.CircuitBreaker
	retryCfg   resilience.RetryConfig
	logger     *slog.Logger
}

// New creates a Responder. The oracle stage is guarded by a circuit breaker
// so a dead upstream degrades to the default guidance instead of stalling
// every request.
func New(deps Deps, chatCfg config.ChatConfig, matcherCfg config.MatcherConfig) *Responder {
	return &Responder{
		deps:       deps,
		cfg:        chatCfg,
		matcherCfg: matcherCfg,
		breaker:    resilience.NewCircuitBreaker("oracle", resilience.CircuitBreakerConfig{}),
		retryCfg:   resilience.RetryConfig{MaxAttempts: 2},
		logger:     slog.Default().With("component", "chat-responder"),
	}
}

// Respond answers one user message. language is the user's language code; an
// empty value means the configured default. The returned reply is in the
// user's language when a translator is available, otherwise in the default
// language.
func (r *Responder) Respond(ctx context.Context, message, language string) (*Reply, error) {
	if language == "" {
		language = r.cfg.DefaultLanguage
	}

	// The corpus is in the default language, so foreign messages are
	// translated before matching. Translation failure is not fatal: the
	// original text still goes through the chain.
	query := message
	if r.deps.Translator != nil && language != r.cfg.DefaultLanguage {
		translated, err := r.deps.Translator(ctx, message, language, r.cfg.DefaultLanguage)
		if err != nil {
			r.logger.Warn("inbound translation failed, matching raw text",
				"language", language,
				"error", err,
			)
		} else {
			query = translated
		}
	}

	if r.deps.Index != nil {
		if ix := r.deps.Index(); ix != nil {
			matches, err := ix.Match(query, r.matcherCfg.TopK, r.matcherCfg.MinConfidence)
			switch {
			case err != nil && !errors.Is(err, matcher.ErrIndexNotBuilt):
				r.logger.Error("match failed", "error", err)
			case len(matches) > 0:
				return r.deliver(ctx, composeMatchReply(matches), StrategyMatch, language, matches)
			}
		}
	}

	if r.deps.Lookup != nil {
		answer, ok, err := r.deps.Lookup(ctx, query)
		if err != nil {
			r.logger.Warn("keyword lookup failed", "error", err)
		} else if ok {
			return r.deliver(ctx, answer, StrategyLookup, language, nil)
		}
	}

	if r.deps.Oracle != nil {
		answer, err := r.askOracle(ctx, query)
		if err != nil {
			r.logger.Warn("oracle fallback failed", "error", err)
		} else if strings.TrimSpace(answer) != "" {
			return r.deliver(ctx, answer, StrategyOracle, language, nil)
		}
	}

	return r.deliver(ctx, DefaultGuidance, StrategyDefault, language, nil)
}

// OracleCircuitState reports the oracle circuit breaker state for health
// reporting.
func (r *Responder) OracleCircuitState() resilience.State {
	return r.breaker.GetState()
}

func (r *Responder) askOracle(ctx context.Context, query string) (string, error) {
	var answer string
	err := r.breaker.Execute(func() error {
		return resilience.Retry(ctx, "oracle", r.retryCfg, func() error {
			octx, cancel := context.WithTimeout(ctx, r.cfg.OracleTimeout)
			defer cancel()
			out, err := r.deps.Oracle(octx, query)
			if err != nil {
				return err
			}
			answer = out
			return nil
		})
	})
	if m := r.deps.Metrics; m != nil {
		m.OracleCircuitState.Set(float64(r.breaker.GetState()))
		switch {
		case err == nil:
			m.OracleCallsTotal.WithLabelValues("success").Inc()
		case errors.Is(err, resilience.ErrCircuitOpen):
			m.OracleCallsTotal.WithLabelValues("circuit_open").Inc()
		default:
			m.OracleCallsTotal.WithLabelValues("error").Inc()
		}
	}
	return answer, err
}

// deliver translates the reply back into the user's language when needed and
// finalises the Reply. Outbound translation failure falls back to the
// untranslated text.
func (r *Responder) deliver(ctx context.Context, text string, strategy Strategy, language string, matches []matcher.Match) (*Reply, error) {
	if r.deps.Translator != nil && language != r.cfg.DefaultLanguage {
		translated, err := r.deps.Translator(ctx, text, r.cfg.DefaultLanguage, language)
		if err != nil {
			r.logger.Warn("outbound translation failed, replying in default language",
				"language", language,
				"error", err,
			)
		} else {
			text = translated
		}
	}
	if m := r.deps.Metrics; m != nil {
		m.ChatRepliesTotal.WithLabelValues(string(strategy)).Inc()
	}
	return &Reply{
		Text:     text,
		Strategy: strategy,
		Language: language,
		Matches:  matches,
	}, nil
}

// composeMatchReply renders the ranked matches into guidance text. The top
// match carries the payload fields; runners-up are listed by name only.
func composeMatchReply(matches []matcher.Match) string {
	top := matches[0]
	var b strings.Builder
	fmt.Fprintf(&b, "Your symptoms best match %s (confidence %.0f%%).", top.Disease.Name, top.Confidence*100)
	if top.Disease.Description != "" {
		b.WriteString(" ")
		b.WriteString(top.Disease.Description)
	}
	if top.Disease.Treatments != "" {
		fmt.Fprintf(&b, "\nRecommended treatments: %s.", strings.TrimSuffix(top.Disease.Treatments, "."))
	}
	if top.Disease.Precautions != "" {
		fmt.Fprintf(&b, "\nPrecautions: %s.", strings.TrimSuffix(top.Disease.Precautions, "."))
	}
	if len(matches) > 1 {
		names := make([]string, 0, len(matches)-1)
		for _, m := range matches[1:] {
			names = append(names, m.Disease.Name)
		}
		fmt.Fprintf(&b, "\nOther possibilities: %s.", strings.Join(names, ", "))
	}
	b.WriteString("\nThis is not a medical diagnosis. Please consult a doctor.")
	return b.String()
}
