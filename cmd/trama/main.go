package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trama-ai/trama/internal/util"

	"github.com/trama-ai/trama/pkg/ai"
	"github.com/trama-ai/trama/pkg/ai/ollama"
	"github.com/trama-ai/trama/pkg/ai/openai"
	"github.com/trama-ai/trama/pkg/analyze"
	"github.com/trama-ai/trama/pkg/cache"
	redisstore "github.com/trama-ai/trama/pkg/cache/redis"
	"github.com/trama-ai/trama/pkg/common"
	"github.com/trama-ai/trama/pkg/logger"
	"github.com/trama-ai/trama/pkg/logger/console"
	"github.com/trama-ai/trama/pkg/pattern"
	"github.com/trama-ai/trama/pkg/relation"
	"github.com/trama-ai/trama/pkg/resolve"
	"github.com/trama-ai/trama/pkg/schedule"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	kind := flag.String("kind", string(common.KindBoth), "what to extract: entities, relations or both")
	flag.Parse()

	text, err := readInput(flag.Arg(0))
	if err != nil {
		logger.Fatal("Could not read input", "err", err)
	}

	// AI client
	adapter := util.GetEnv("AI_ADAPTER")
	var aiClient ai.TextAIClient

	switch adapter {
	case "ollama":
		client, err := ollama.NewClient(ollama.ClientParams{
			Model:                 util.GetEnvString("AI_MODEL", "llama3.1"),
			BaseURL:               util.GetEnv("AI_BASE_URL"),
			APIKey:                util.GetEnv("AI_API_KEY"),
			MaxConcurrentRequests: int64(util.GetEnvInt("OLLAMA_MAX_CONCURRENT", 2)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		aiClient = client
	default:
		client, err := openai.NewClient(openai.ClientParams{
			Model:   util.GetEnvString("AI_MODEL", "gpt-4o-mini"),
			BaseURL: util.GetEnv("AI_BASE_URL"),
			APIKey:  util.GetEnv("AI_API_KEY"),
		})
		if err != nil {
			logger.Fatal("Could not create OpenAI client", "err", err)
		}
		aiClient = client
	}

	// scheduler
	var estimator schedule.TokenEstimator
	if model := util.GetEnv("TOKENIZER_MODEL"); model != "" {
		estimator, err = schedule.TiktokenEstimator(model)
		if err != nil {
			logger.Fatal("Could not create token estimator", "model", model, "err", err)
		}
	}

	scheduler, err := schedule.New(schedule.Params{
		Client:                aiClient,
		MaxConcurrentRequests: util.GetEnvInt("MAX_CONCURRENT_REQUESTS", 12),
		MaxTokensPerMinute:    util.GetEnvInt("MAX_TOKENS_PER_MINUTE", 90000),
		RetryAttempts:         util.GetEnvInt("RETRY_ATTEMPTS", 3),
		BaseDelay:             util.GetEnvDuration("BASE_DELAY", 750*time.Millisecond),
		CallTimeout:           util.GetEnvDuration("CALL_TIMEOUT", 60*time.Second),
		TokenEstimator:        estimator,
	})
	if err != nil {
		logger.Fatal("Could not create scheduler", "err", err)
	}

	// caches
	responses, err := cache.NewResponseCache(util.GetEnvInt("RESPONSE_CACHE_SIZE", 512))
	if err != nil {
		logger.Fatal("Could not create response cache", "err", err)
	}
	texts, err := cache.NewTextCache(util.GetEnvInt("TEXT_CACHE_SIZE", 256))
	if err != nil {
		logger.Fatal("Could not create text cache", "err", err)
	}

	var remote cache.RemoteStore
	if addr := util.GetEnv("REDIS_ADDR"); addr != "" {
		store := redisstore.NewStore(redisstore.StoreParams{
			Addr:     addr,
			Password: util.GetEnv("REDIS_PASSWORD"),
			DB:       util.GetEnvInt("REDIS_DB", 0),
		})
		if err := store.Ping(ctx); err != nil {
			logger.Warn("Redis unreachable, continuing without remote cache", "addr", addr, "err", err)
		} else {
			remote = store
			defer store.Close()
		}
	}

	// resolution engines
	resolver, err := resolve.New(resolve.Params{
		MinConfidence: util.GetEnvFloat("MIN_CONFIDENCE", 0),
	})
	if err != nil {
		logger.Fatal("Could not create entity resolver", "err", err)
	}
	relations, err := relation.New(relation.Params{})
	if err != nil {
		logger.Fatal("Could not create relation engine", "err", err)
	}

	analyzer, err := analyze.New(analyze.Params{
		Scheduler: scheduler,
		Matcher:   pattern.NewMatcher(),
		Resolver:  resolver,
		Relations: relations,
		Responses: responses,
		Texts:     texts,
		Remote:    remote,
		ChunkSize: util.GetEnvInt("CHUNK_SIZE", 0),
	})
	if err != nil {
		logger.Fatal("Could not create analyzer", "err", err)
	}

	result, err := analyzer.Analyze(ctx, text, common.AnalysisKind(*kind))
	if err != nil {
		logger.Fatal("Analysis failed", "err", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal("Could not encode result", "err", err)
	}
	fmt.Println(string(out))
}

// readInput returns the text to analyze: the named file, or stdin when no
// path (or "-") is given.
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
