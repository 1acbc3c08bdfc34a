package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chefos/internal/api"
	"chefos/internal/core/ai/cache"
	"chefos/internal/core/ai/openrouter"
	aiservice "chefos/internal/core/ai/service"
	"chefos/internal/core/recipe"
	"chefos/internal/core/session"
	"chefos/internal/infrastructure/config"
	"chefos/internal/infrastructure/metrics"
	"chefos/internal/pkg/common"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	// 載入 .env
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	// 載入設定；缺少模型憑證時在此直接結束
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	common.LogInfo("載入設定",
		zap.String("api_key", cfg.MaskedAPIKey()),
		zap.String("model", cfg.Model.Model),
		zap.String("variant", cfg.Pipeline.Variant),
		zap.String("output_mode", cfg.Pipeline.OutputMode),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	// 初始化快取
	store, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	if store != nil {
		defer store.Close()
	}

	// 模型客戶端與兩個階段
	client := openrouter.NewClient(cfg.Model)
	defer client.Close()
	ai := aiservice.NewService(client, m)

	variant, ok := recipe.LookupVariant(cfg.Pipeline.Variant)
	if !ok {
		common.LogFatal("Unknown prompt variant", zap.String("variant", cfg.Pipeline.Variant))
	}
	variant = variant.WithMode(recipe.OutputMode(cfg.Pipeline.OutputMode))

	recipes := recipe.NewService(ai.Stage(aiservice.StageExtract), ai.Stage(aiservice.StageAdapt), store, variant)

	// 會話
	sessions := session.NewStore(cfg.Session.TTL, m)
	sessions.StartCleanup(ctx, cfg.Session.CleanupInterval)
	svc := session.NewService(sessions, recipes.Extractor, recipes.Adapter, session.Options{
		MinServings:     cfg.Pipeline.MinServings,
		MaxServings:     cfg.Pipeline.MaxServings,
		DefaultServings: cfg.Pipeline.DefaultServings,
		RawFallback:     cfg.Pipeline.RawFallback,
	}, m)

	// 設置路由
	router, err := api.SetupRouter(ctx, api.Dependencies{
		Config:   cfg,
		Sessions: svc,
		Store:    sessions,
		Cache:    store,
	})
	if err != nil {
		common.LogFatal("Failed to setup router", zap.Error(err))
	}

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Bool("debug", cfg.App.Debug),
			zap.Int("port", cfg.Server.Port),
			zap.String("recipe_mode", string(recipes.Adapter.Mode())),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")
	stop()

	// 設置關閉超時
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
		return
	}

	common.LogInfo("Server exited")
}
