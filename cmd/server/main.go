package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-analyzer/internal/analystagent"
	"stock-analyzer/internal/analyzer"
	"stock-analyzer/internal/api"
	"stock-analyzer/internal/cache"
	"stock-analyzer/internal/config"
	"stock-analyzer/internal/market"
	"stock-analyzer/internal/store"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/app.yaml", "path to the yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	h := server.Default(server.WithHostPorts(addr))

	var payloadCache cache.Cache = cache.NewMemory()
	if cfg.Cache.Backend == "sqlite" {
		st, err := store.Open(cfg.Store.Sqlite.Path)
		if err != nil {
			log.Fatalf("store error: %v", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				log.Printf("store close error: %v", err)
			}
		}()
		payloadCache = cache.NewSqlite(st)
	}

	av := market.NewAlphaVantageClient(time.Duration(cfg.Fetch.TimeoutSec) * time.Second)
	fred := market.NewFredClient(time.Duration(cfg.Fetch.TimeoutSec) * time.Second)

	agent := analystagent.New(analystagent.Config{
		Enabled:    cfg.Analyst.Enabled,
		Model:      cfg.Analyst.Model,
		APIKey:     cfg.Analyst.APIKey,
		BaseURL:    cfg.Analyst.BaseURL,
		ByAzure:    cfg.Analyst.ByAzure,
		APIVersion: cfg.Analyst.APIVersion,
		TimeoutMs:  cfg.Analyst.TimeoutMs,
	})

	svc := analyzer.New(analyzer.Config{
		AlphaVantageKey: cfg.Credentials.AlphaVantageKey,
		FredKey:         cfg.Credentials.FredKey,
		CacheTTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
		MacroSeriesID:   cfg.Fetch.MacroSeriesID,
	}, av, fred, payloadCache, agent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.Watchlist.Tickers) > 0 && cfg.Watchlist.RefreshIntervalSec > 0 {
		go svc.WarmLoop(ctx, cfg.Watchlist.Tickers, time.Duration(cfg.Watchlist.RefreshIntervalSec)*time.Second)
	}

	api.RegisterRoutes(h, svc, agent)
	log.Printf("route registered: GET /api/v1/analyze")

	log.Printf("server starting on %s (log.level=%s cache=%s)", addr, cfg.Log.Level, cfg.Cache.Backend)
	h.Spin()
}
