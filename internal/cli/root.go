// Package cmd wires the forge binary's subcommands: serve runs the REST+SSE
// API, worker runs the claim/run/finish crawl loop, migrate applies
// database schema migrations. All three read their settings from
// config.ServerConfig.FromEnv, never from flags or a config file — the
// teacher's local one-shot crawler took seed URLs and tuning knobs on the
// command line; this is a long-running service pair instead.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/llmstxt-forge/forge/internal/assembler"
	"github.com/llmstxt-forge/forge/internal/assembler/llmassembler"
	"github.com/llmstxt-forge/forge/internal/assembler/templateassembler"
	"github.com/llmstxt-forge/forge/internal/build"
	"github.com/llmstxt-forge/forge/internal/changetracker"
	"github.com/llmstxt-forge/forge/internal/config"
	"github.com/llmstxt-forge/forge/internal/crawler"
	"github.com/llmstxt-forge/forge/internal/crawler/ratelimit"
	"github.com/llmstxt-forge/forge/internal/cronscheduler"
	"github.com/llmstxt-forge/forge/internal/extractor"
	"github.com/llmstxt-forge/forge/internal/fetcher"
	"github.com/llmstxt-forge/forge/internal/httpapi"
	"github.com/llmstxt-forge/forge/internal/metadata"
	"github.com/llmstxt-forge/forge/internal/obslog"
	"github.com/llmstxt-forge/forge/internal/queue"
	"github.com/llmstxt-forge/forge/internal/robots/cache"
	"github.com/llmstxt-forge/forge/internal/store/postgres"
	"github.com/llmstxt-forge/forge/internal/worker"
)

var (
	httpAddr   string
	logLevel   string
	logConsole bool
)

var rootCmd = &cobra.Command{
	Use:     "forge",
	Short:   "Crawl documentation sites and assemble llms.txt documents.",
	Version: build.FullVersion(),
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST + server-push API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the claim/run/finish crawl loop.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorker(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database schema migrations.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "render human-readable console log lines instead of JSON")
	serveCmd.Flags().StringVar(&httpAddr, "addr", ":8080", "HTTP listen address")

	rootCmd.AddCommand(serveCmd, workerCmd, migrateCmd)
}

// Execute runs the forge binary under ctx (expected to carry a
// signal-driven cancellation from cmd/forge/main.go for serve/worker's
// graceful shutdown). It returns the process exit code: 2 for a malformed
// environment (config.InvalidConfigError), 1 for any other failure, 0 on
// success.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var invalidCfg *config.InvalidConfigError
		if errors.As(err, &invalidCfg) {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func logFormat() obslog.Format {
	if logConsole {
		return obslog.FormatConsole
	}
	return obslog.FormatJSON
}

func runServe(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := obslog.Setup(obslog.Config{Level: logLevel, Format: logFormat()})

	store, err := postgres.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	q := queue.New(store)
	sink := metadata.NewRecorderWithLogger(log.With().Str("component", "httpapi").Logger())
	srv := httpapi.New(store, q, &sink, cfg)

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: srv.NewServeMux(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpAddr).Msg("httpapi listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	if cfg.RunScheduler() {
		schedulerSink := metadata.NewRecorderWithLogger(log.With().Str("component", "cronscheduler").Logger())
		sched := cronscheduler.New(store, q, &schedulerSink)
		go func() {
			if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("cronscheduler stopped")
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info().Msg("shutting down httpapi")
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func runWorker(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := obslog.Setup(obslog.Config{Level: logLevel, Format: logFormat()})

	store, err := postgres.Open(ctx, cfg.DatabaseURL())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer store.Close()

	q := queue.New(store)
	crawlSink := metadata.NewRecorderWithLogger(log.With().Str("component", "crawler").Logger())

	htmlFetcher := fetcher.NewHtmlFetcher(&crawlSink)
	htmlFetcher.Init(&http.Client{})
	domExtractor := extractor.NewDomExtractor(&crawlSink, extractor.DefaultExtractParam())
	metadataExtractor := extractor.NewMetadataExtractor(domExtractor)
	tracker := changetracker.New(store)
	limiter := ratelimit.New(2, 4)

	c := crawler.New(
		&htmlFetcher,
		metadataExtractor,
		store,
		store,
		tracker,
		limiter,
		cache.NewMemoryCache(),
		&crawlSink,
	)

	var asm assembler.Assembler
	asmSink := metadata.NewRecorderWithLogger(log.With().Str("component", "assembler").Logger())
	if cfg.HasLLM() {
		asm = llmassembler.New(cfg.LLMAPIKey(), cfg.LLMModel(), &asmSink)
	} else {
		asm = templateassembler.New(&asmSink)
	}

	workerSink := metadata.NewRecorderWithLogger(log.With().Str("component", "worker").Logger())
	w := worker.New(cfg.WorkerID(), q, store, c, asm, &workerSink)

	log.Info().Str("worker_id", cfg.WorkerID()).Bool("llm_assembler", cfg.HasLLM()).Msg("worker starting")
	return w.Run(ctx)
}

func runMigrate(ctx context.Context) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	return postgres.Migrate(cfg.DatabaseURL())
}
