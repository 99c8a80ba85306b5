package chat_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/medicobot/medicobot/internal/chat"
	"github.com/medicobot/medicobot/internal/corpus"
	"github.com/medicobot/medicobot/internal/matcher"
	"github.com/medicobot/medicobot/pkg/config"
)

func testChatConfig() config.ChatConfig {
	return config.ChatConfig{
		DefaultLanguage:  "en",
		MaxMessageLength: 1000,
		OracleTimeout:    time.Second,
	}
}

func testMatcherConfig() config.MatcherConfig {
	return config.MatcherConfig{TopK: 3, MinConfidence: 0.1}
}

func buildIndex(t *testing.T) *matcher.Index {
	t.Helper()
	ix, err := matcher.Build([]corpus.Disease{
		{
			Name:        "Flu",
			Symptoms:    "fever cough fatigue",
			Description: "A viral infection of the respiratory tract.",
			Treatments:  "Rest and fluids",
			Precautions: "Wash hands often",
		},
		{Name: "Migraine", Symptoms: "headache nausea light sensitivity"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return ix
}

func TestRespondMatchStrategy(t *testing.T) {
	ix := buildIndex(t)
	r := chat.New(chat.Deps{Index: func() *matcher.Index { return ix }}, testChatConfig(), testMatcherConfig())

	reply, err := r.Respond(context.Background(), "fever and cough", "en")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Strategy != chat.StrategyMatch {
		t.Fatalf("strategy = %q, want %q", reply.Strategy, chat.StrategyMatch)
	}
	if len(reply.Matches) == 0 || reply.Matches[0].Disease.Name != "Flu" {
		t.Errorf("unexpected matches: %+v", reply.Matches)
	}
	for _, want := range []string{"Flu", "Rest and fluids", "Wash hands often", "consult a doctor"} {
		if !strings.Contains(reply.Text, want) {
			t.Errorf("reply text missing %q:\n%s", want, reply.Text)
		}
	}
}

func TestRespondLookupFallback(t *testing.T) {
	ix := buildIndex(t)
	r := chat.New(chat.Deps{
		Index: func() *matcher.Index { return ix },
		Lookup: func(ctx context.Context, query string) (string, bool, error) {
			return "Drink plenty of water.", true, nil
		},
	}, testChatConfig(), testMatcherConfig())

	reply, err := r.Respond(context.Background(), "how much water should I drink", "en")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Strategy != chat.StrategyLookup {
		t.Fatalf("strategy = %q, want %q", reply.Strategy, chat.StrategyLookup)
	}
	if reply.Text != "Drink plenty of water." {
		t.Errorf("unexpected reply text: %q", reply.Text)
	}
}

func TestRespondOracleFallback(t *testing.T) {
	ix := buildIndex(t)
	r := chat.New(chat.Deps{
		Index: func() *matcher.Index { return ix },
		Lookup: func(ctx context.Context, query string) (string, bool, error) {
			return "", false, nil
		},
		Oracle: func(ctx context.Context, prompt string) (string, error) {
			return "General wellness advice.", nil
		},
	}, testChatConfig(), testMatcherConfig())

	reply, err := r.Respond(context.Background(), "completely unrelated question", "en")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Strategy != chat.StrategyOracle {
		t.Fatalf("strategy = %q, want %q", reply.Strategy, chat.StrategyOracle)
	}
	if reply.Text != "General wellness advice." {
		t.Errorf("unexpected reply text: %q", reply.Text)
	}
}

func TestRespondDefaultFallback(t *testing.T) {
	r := chat.New(chat.Deps{Index: func() *matcher.Index { return nil }}, testChatConfig(), testMatcherConfig())

	reply, err := r.Respond(context.Background(), "anything", "en")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Strategy != chat.StrategyDefault {
		t.Fatalf("strategy = %q, want %q", reply.Strategy, chat.StrategyDefault)
	}
	if reply.Text != chat.DefaultGuidance {
		t.Errorf("unexpected reply text: %q", reply.Text)
	}
}

func TestRespondOracleErrorFallsToDefault(t *testing.T) {
	r := chat.New(chat.Deps{
		Index: func() *matcher.Index { return nil },
		Oracle: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("upstream down")
		},
	}, testChatConfig(), testMatcherConfig())

	reply, err := r.Respond(context.Background(), "anything", "en")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply.Strategy != chat.StrategyDefault {
		t.Fatalf("strategy = %q, want %q", reply.Strategy, chat.StrategyDefault)
	}
}

func TestRespondTranslatesBothWays(t *testing.T) {
	ix := buildIndex(t)
	var inbound []string
	translator := func(ctx context.Context, text, from, to string) (string, error) {
		if from == "es" && to == "en" {
			inbound = append(inbound, text)
			return "fever and cough", nil
		}
		if from == "en" && to == "es" {
			return "ES: " + text, nil
		}
		return text, nil
	}
	r := chat.New(chat.Deps{
		Index:      func() *matcher.Index { return ix },
		Translator: translator,
	}, testChatConfig(), testMatcherConfig())

	reply, err := r.Respond(context.Background(), "fiebre y tos", "es")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if len(inbound) != 1 || inbound[0] != "fiebre y tos" {
		t.Errorf("inbound translation calls: %v", inbound)
	}
	if reply.Strategy != chat.StrategyMatch {
		t.Fatalf("strategy = %q, want %q", reply.Strategy, chat.StrategyMatch)
	}
	if !strings.HasPrefix(reply.Text, "ES: ") {
		t.Errorf("reply not translated back: %q", reply.Text)
	}
	if reply.Language != "es" {
		t.Errorf("reply language = %q, want es", reply.Language)
	}
}

func TestRespondDefaultLanguageSkipsTranslation(t *testing.T) {
	ix := buildIndex(t)
	r := chat.New(chat.Deps{
		Index: func() *matcher.Index { return ix },
		Translator: func(ctx context.Context, text, from, to string) (string, error) {
			t.Errorf("translator called for default language (%s -> %s)", from, to)
			return text, nil
		},
	}, testChatConfig(), testMatcherConfig())

	if _, err := r.Respond(context.Background(), "fever and cough", ""); err != nil {
		t.Fatalf("Respond: %v", err)
	}
}
