package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/recallhq/recall/internal/adapters/driven/config/file"
	"github.com/recallhq/recall/internal/adapters/driven/embedding"
	"github.com/recallhq/recall/internal/adapters/driven/embedding/ollama"
	"github.com/recallhq/recall/internal/adapters/driven/embedding/openai"
	"github.com/recallhq/recall/internal/adapters/driven/storage/sqlite"
	"github.com/recallhq/recall/internal/adapters/driven/vector"
	"github.com/recallhq/recall/internal/adapters/driving/cli"
	"github.com/recallhq/recall/internal/chunker"
	"github.com/recallhq/recall/internal/core/ports/driven"
	"github.com/recallhq/recall/internal/core/services"
	"github.com/recallhq/recall/internal/logger"
)

func main() {
	if err := run(); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	// Optional; env vars from the shell take precedence.
	_ = godotenv.Load()

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := sqlite.NewStore(configStore.GetString("storage.data_dir"))
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	embedder := buildEmbedder(configStore)

	index, err := vector.New(vectorPath(store.Path()), embedderDimensions(embedder))
	if err != nil {
		return fmt.Errorf("opening vector index: %w", err)
	}

	relationships := store.RelationshipStore()
	history := store.HistoryStore()

	retrievalOpts := []services.RetrievalOption{}
	if w := configStore.GetFloat("retrieval.entity_weight"); w > 0 {
		retrievalOpts = append(retrievalOpts, services.WithEntityWeight(w))
	}
	if b := configStore.GetFloat("retrieval.negation_boost"); b > 0 {
		retrievalOpts = append(retrievalOpts, services.WithNegationBoost(b))
	}

	cli.Configure(cli.Services{
		Retriever: services.NewRetrievalService(relationships, index, embedder, history, retrievalOpts...),
		Ingestor:  services.NewIngestService(chunker.New(), relationships, index, embedder),
		Library:   services.NewLibraryService(relationships),
		History:   services.NewHistoryService(history),
		Config:    configStore,
	})

	return cli.Execute()
}

// buildEmbedder selects the embedding backend from config and env. An API
// key selects OpenAI; otherwise a local Ollama server is assumed. Returns
// nil when the provider is explicitly disabled, which keeps the engine in
// relationship-only mode.
func buildEmbedder(cfg driven.ConfigStore) driven.EmbeddingService {
	provider := cfg.GetString("embedding.provider")
	if provider == "none" {
		return nil
	}

	apiKey := cfg.GetString("embedding.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("RECALL_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	var svc driven.EmbeddingService
	if provider == "openai" || (provider == "" && apiKey != "") {
		openaiSvc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.GetString("embedding.base_url"),
			Model:   cfg.GetString("embedding.model"),
		})
		if err != nil {
			logger.Warn("OpenAI embedding unavailable: %v; falling back to entity matching", err)
			return nil
		}
		svc = openaiSvc
	} else {
		svc = ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.GetString("embedding.base_url"),
			Model:      cfg.GetString("embedding.model"),
			Dimensions: cfg.GetInt("embedding.dimensions"),
			Timeout:    time.Duration(cfg.GetInt("embedding.timeout_seconds")) * time.Second,
		})
	}

	if rps := cfg.GetFloat("embedding.requests_per_second"); rps > 0 {
		return embedding.NewRateLimited(svc, rps, cfg.GetInt("embedding.burst"))
	}
	return svc
}

// vectorPath places the vector index next to the SQLite database.
func vectorPath(dbPath string) string {
	return filepath.Join(filepath.Dir(dbPath), "vectors.idx")
}

func embedderDimensions(svc driven.EmbeddingService) int {
	if svc == nil {
		return ollama.DefaultDimensions
	}
	return svc.Dimensions()
}
