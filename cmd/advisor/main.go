package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/boddenberg/card-advisor-bfa-go/internal/billing"
	"github.com/boddenberg/card-advisor-bfa-go/internal/config"
	"github.com/boddenberg/card-advisor-bfa-go/internal/domain"
	"github.com/boddenberg/card-advisor-bfa-go/internal/handler"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/cache"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/observability"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/pending"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/card-advisor-bfa-go/internal/infra/sheets"
	"github.com/boddenberg/card-advisor-bfa-go/internal/port"
	"github.com/boddenberg/card-advisor-bfa-go/internal/service"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	issueToken := flag.String("issue-token", "", "print a service token for `subject` and exit")
	tokenTTL := flag.Duration("token-ttl", 365*24*time.Hour, "lifetime of the token printed by -issue-token")
	saveSheetsToken := flag.String("save-sheets-token", "", "store the Sheets API `token` in the OS keyring and exit")
	flag.Parse()

	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if *saveSheetsToken != "" {
		if err := config.SaveSheetsToken(cfg.Sheets.KeyringService, cfg.Sheets.KeyringAccount, *saveSheetsToken); err != nil {
			fmt.Fprintf(os.Stderr, "save sheets token: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("sheets token stored in keyring service=%q account=%q\n", cfg.Sheets.KeyringService, cfg.Sheets.KeyringAccount)
		return
	}

	if *issueToken != "" {
		if strings.TrimSpace(cfg.JWTSecret) == "" {
			fmt.Fprintln(os.Stderr, "issue token: JWT_SECRET is not set")
			os.Exit(1)
		}
		tok, err := service.NewTokenService(cfg.JWTSecret).IssueServiceToken(*issueToken, *tokenTTL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("time_zone", cfg.TimeZone),
		zap.Duration("pending_ttl", cfg.PendingTTL),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Int("threshold_days", cfg.ThresholdDays),
		zap.Int("top_alternatives", cfg.TopAlternatives),
		zap.Strings("exempt_cards", cfg.ExemptCards),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Bool("auth_disabled", cfg.AuthDisabled),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "card-advisor-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Card catalog ---
	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal("invalid time zone", zap.Error(err))
	}
	cycles, err := cfg.CycleConfigs()
	if err != nil {
		logger.Fatal("failed to load card cycles", zap.Error(err))
	}
	catalog, err := billing.NewCatalog(cycles)
	if err != nil {
		logger.Fatal("invalid card cycles", zap.Error(err))
	}
	if catalog.Len() == 0 {
		logger.Warn("no card cycles configured: purchases will be recorded without advice")
	}
	advisor := billing.NewAdvisor(catalog, billing.NewExemptSet(cfg.ExemptCards...), cfg.ThresholdDays, cfg.TopAlternatives)
	logger.Info("card catalog loaded",
		zap.Int("cards", catalog.Len()),
		zap.Strings("exempt", advisor.ExemptIDs()),
	)

	// --- Pending confirmations ---
	store := pending.NewStore()
	metrics.RegisterPendingGauge(store.Len)

	// --- Recorder ---
	var recorder port.PurchaseRecorder
	if cfg.Sheets.SpreadsheetID != "" {
		token, err := config.LoadSheetsToken(cfg.Sheets.KeyringService, cfg.Sheets.KeyringAccount)
		if err != nil {
			logger.Fatal("spreadsheet configured but no token available", zap.Error(err))
		}
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		recorder = sheets.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.Sheets.BaseURL,
			cfg.Sheets.SpreadsheetID,
			cfg.Sheets.Range,
			token,
			resilience.NewCircuitBreaker("sheets", logger),
			resilienceCfg,
			logger,
		)
		logger.Info("recording purchases to spreadsheet",
			zap.String("spreadsheet_id", cfg.Sheets.SpreadsheetID),
			zap.String("range", cfg.Sheets.Range),
		)
	} else {
		logger.Warn("SHEETS_SPREADSHEET_ID not set: purchases are only logged")
		recorder = sheets.NewLogRecorder(logger)
	}

	// --- Services ---
	confirmSvc := service.NewConfirmationService(
		advisor,
		store,
		recorder,
		service.ConfirmationConfig{
			TTL:       cfg.PendingTTL,
			Location:  loc,
			RowStatus: cfg.RowStatus,
		},
		metrics,
		logger,
	)

	rankingCache := cache.New[domain.RankingResponse](cfg.CacheTTL)
	defer rankingCache.Close()
	cardSvc := service.NewCardService(advisor, rankingCache, loc, time.Now, metrics, logger)

	var tokens *service.TokenService
	if cfg.AuthDisabled {
		logger.Warn("service authentication disabled")
	} else {
		tokens = service.NewTokenService(cfg.JWTSecret)
	}

	// --- Router ---
	router := handler.NewRouter(confirmSvc, cardSvc, tokens, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	sweeper := pending.NewSweeper(store, cfg.PendingTTL, cfg.SweepInterval, time.Now, metrics, logger)
	g.Go(func() error {
		return sweeper.Run(gctx)
	})

	// --- Graceful shutdown ---
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}

	logger.Info("server stopped", zap.Int("pending_dropped", store.Len()))
}
