package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rfpflow/rfpflow/config"
	"github.com/rfpflow/rfpflow/internal/answering"
	"github.com/rfpflow/rfpflow/internal/chunker"
	"github.com/rfpflow/rfpflow/internal/export"
	"github.com/rfpflow/rfpflow/internal/extract"
	"github.com/rfpflow/rfpflow/internal/extraction"
	"github.com/rfpflow/rfpflow/internal/notify"
	"github.com/rfpflow/rfpflow/internal/provider/ollama"
	"github.com/rfpflow/rfpflow/internal/queue"
	"github.com/rfpflow/rfpflow/internal/rerank"
	"github.com/rfpflow/rfpflow/internal/store"
	"github.com/rfpflow/rfpflow/internal/vector"
	"github.com/rfpflow/rfpflow/internal/worker"
)

func workerCMD() *cobra.Command {
	var cfgPath string
	var cmd = &cobra.Command{
		Use:   "worker",
		Short: "Run the pipeline workers",
		Long:  "Runs the document, question, knowledge-base, and export workers, each polling its own queue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			return runWorkers(cfg)
		},
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return cmd
}

func runWorkers(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Storage.Redis.Addr(),
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	defer func() { _ = rdb.Close() }()

	db, err := sql.Open("postgres", cfg.Storage.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	defer func() { _ = db.Close() }()

	st := &store.Store{DB: db}
	broker := queue.NewBroker(rdb)
	notifier := notify.NewPublisher(rdb, log.New(os.Stdout, "[NOTIFY] ", log.LstdFlags))

	llm := ollama.New(cfg.LLM.BaseURL, cfg.LLM.GenerationModel, cfg.LLM.EmbeddingModel, cfg.LLM.Temperature, cfg.LLM.Timeout)
	vectors := vector.NewClient(cfg.Vector.BaseURL, llm, cfg.Vector.Timeout, log.New(os.Stdout, "[VECTOR] ", log.LstdFlags))
	ingestor := chunker.NewIngestor(vectors, cfg.Chunking.Size, cfg.Chunking.Overlap, log.New(os.Stdout, "[CHUNKER] ", log.LstdFlags))
	extractor := extract.New(log.New(os.Stdout, "[EXTRACT] ", log.LstdFlags))
	questions := extraction.NewEngine(llm, extraction.DefaultTemplates(), cfg.Extraction.MaxSheetCells, log.New(os.Stdout, "[EXTRACTION] ", log.LstdFlags))

	var reranker answering.Reranker
	if cfg.Reranker.Enabled {
		reranker = rerank.NewClient(cfg.Reranker.BaseURL, cfg.Reranker.Timeout, log.New(os.Stdout, "[RERANK] ", log.LstdFlags))
	}
	answers := answering.NewEngine(llm, vectors, reranker, "", cfg.Reranker.TopK, cfg.Reranker.Oversample,
		log.New(os.Stdout, "[ANSWERING] ", log.LstdFlags))
	renderer := export.NewRenderer(cfg.Export.Dir, log.New(os.Stdout, "[EXPORT] ", log.LstdFlags))

	logger := log.New(os.Stdout, "[WORKER] ", log.LstdFlags)
	handlers := []worker.Handler{
		worker.NewDocumentProcessor(st, extractor, ingestor, questions, broker, notifier, logger),
		worker.NewQuestionProcessor(st, answers, logger),
		worker.NewQAPairProcessor(st, ingestor, logger),
		worker.NewExportProcessor(st, renderer, notifier, logger),
	}

	runner := worker.NewRunner(broker, cfg.Worker.PollTimeout, cfg.Worker.ErrorBackoff, logger)

	var wg sync.WaitGroup
	for _, h := range handlers {
		wg.Add(1)
		go func(h worker.Handler) {
			defer wg.Done()
			if err := runner.Run(ctx, h); err != nil {
				logger.Printf("%s worker exited: %v", h.Stage(), err)
			}
		}(h)
	}

	if cfg.Telemetry.Enabled {
		health := worker.NewHealthServer(cfg.Telemetry.Address, logger)
		monitor := worker.NewQueueMonitor(broker, []string{
			queue.DocumentProcessing, queue.QuestionProcessing, queue.QAPairProcessing, queue.ExportJobs,
		}, 15*time.Second, logger)
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := health.Start(ctx); err != nil {
				logger.Printf("health server exited: %v", err)
				cancel()
			}
		}()
		go func() {
			defer wg.Done()
			monitor.Run(ctx)
		}()
	}

	wg.Wait()
	return nil
}
