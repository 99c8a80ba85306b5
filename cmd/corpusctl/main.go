// Command corpusctl seeds the disease corpus: it loads a CSV file into
// Postgres, replacing the existing table, and publishes a corpus update event
// so running instances rebuild their index.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/medicobot/medicobot/internal/corpus"
	"github.com/medicobot/medicobot/internal/corpus/manager"
	"github.com/medicobot/medicobot/pkg/config"
	"github.com/medicobot/medicobot/pkg/kafka"
	"github.com/medicobot/medicobot/pkg/logger"
	"github.com/medicobot/medicobot/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	csvPath := flag.String("csv", "", "path to the diseases CSV (default: corpus.csvPath from config)")
	publish := flag.Bool("publish", true, "publish a corpus update event after loading")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	path := *csvPath
	if path == "" {
		path = cfg.Corpus.CSVPath
	}

	diseases, err := corpus.LoadCSV(path)
	if err != nil {
		slog.Error("failed to load corpus CSV", "path", path, "error", err)
		os.Exit(1)
	}
	if len(diseases) == 0 {
		slog.Error("corpus CSV contains no records", "path", path)
		os.Exit(1)
	}
	slog.Info("corpus CSV loaded", "path", path, "records", len(diseases))

	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo := corpus.NewRepository(pgClient)
	if err := repo.ReplaceAll(ctx, diseases); err != nil {
		slog.Error("failed to store corpus", "error", err)
		os.Exit(1)
	}
	slog.Info("corpus stored", "records", len(diseases))

	if *publish {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CorpusUpdated)
		defer producer.Close()
		event := manager.UpdateEvent{
			Source:    "corpusctl",
			Records:   len(diseases),
			UpdatedAt: time.Now().UTC(),
		}
		if err := producer.Publish(ctx, kafka.Event{Key: "corpusctl", Value: event}); err != nil {
			slog.Error("failed to publish corpus update", "error", err)
			os.Exit(1)
		}
		slog.Info("corpus update published", "topic", cfg.Kafka.Topics.CorpusUpdated)
	}
}
