// Package app はアプリケーションの初期化と起動を提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/songdash/songdash/internal/cache"
	"github.com/songdash/songdash/internal/config"
	"github.com/songdash/songdash/internal/database"
	"github.com/songdash/songdash/internal/handler"
	"github.com/songdash/songdash/internal/logger"
	"github.com/songdash/songdash/internal/lyrics"
	"github.com/songdash/songdash/internal/metrics"
	"github.com/songdash/songdash/internal/middleware"
	"github.com/songdash/songdash/internal/moment"
	"github.com/songdash/songdash/internal/music"
	"github.com/songdash/songdash/internal/repository"
	"github.com/songdash/songdash/internal/security"
	"github.com/songdash/songdash/internal/worker/sweep"
)

// songLinkTimeout はsong.linkリンク解決のタイムアウト。
// 補助機能のため本体の取得より短くする。
const songLinkTimeout = 3 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// リポジトリ・キャッシュ・レート制限・外部APIクライアントをワイヤリングし、
// HTTPサーバーとバックグラウンドのスイープジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. リポジトリの初期化
	// DATABASE_URL未設定の場合はインメモリストアで起動する（開発・テスト用）。
	var repo repository.MomentRepository
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL is not set, using in-memory store (data will not survive restart)")
		repo = repository.NewMemoryMomentRepo()
	} else {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		repo = repository.NewPostgresMomentRepo(db)
	}

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. キャッシュとレート制限の初期化
	momentCache := cache.New(cfg.MomentCacheTTL)
	searchCache := cache.New(cfg.SearchCacheTTL)

	submissionLimiter := middleware.NewSubmissionLimiter(middleware.SubmissionLimiterConfig{
		Window:      cfg.RateLimitWindow,
		MaxRequests: cfg.RateLimitMaxRequests,
	})
	generalLimiter := middleware.NewGeneralRateLimiter(
		middleware.NewGeneralRateLimiterConfig(cfg.GeneralRateLimit),
	)
	defer generalLimiter.Stop()

	// 4. ドメインサービスの初期化
	noteSanitizer := security.NewNoteSanitizer()
	momentService := moment.NewService(repo, momentCache, noteSanitizer, cfg.BaseURL, collector)

	// 5. 外部APIクライアントの初期化
	upstreamHTTPClient := &http.Client{Timeout: cfg.UpstreamTimeout}
	spotifyClient := music.NewSpotifyClient(
		upstreamHTTPClient, slog.Default(),
		cfg.SpotifyClientID, cfg.SpotifyClientSecret, collector,
	)
	songLinkClient := music.NewSongLinkClient(
		&http.Client{Timeout: songLinkTimeout}, slog.Default(), collector,
	)
	lyricsClient := lyrics.NewClient(
		&http.Client{Timeout: cfg.LyricsTimeout}, slog.Default(),
		cfg.GeniusAccessToken, collector,
	)
	artworkGuard := security.NewArtworkGuard()

	if !spotifyClient.Enabled() {
		slog.Warn("spotify credentials are not set, search and song lookup are disabled")
	}

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		SubmissionLimiter: submissionLimiter,
		GeneralLimiter:    generalLimiter,
		Collector:         collector,
		Gatherer:          registry,

		MomentService: momentService,
		SearchHandler: handler.NewSearchHandler(
			spotifyClient, songLinkClient, searchCache, collector,
			cfg.UpstreamTimeout, songLinkTimeout,
		),
		SongHandler: handler.NewSongHandler(
			spotifyClient, songLinkClient, lyricsClient,
			cfg.UpstreamTimeout, songLinkTimeout, cfg.LyricsTimeout,
		),
		LyricsHandler: handler.NewLyricsHandler(lyricsClient, cfg.LyricsTimeout),
		OGHandler:     handler.NewOGHandler(artworkGuard, cfg.ArtworkTimeout, cfg.ArtworkMaxSize),
	}

	router := handler.NewRouter(deps)

	// 7. バックグラウンドスイープジョブの起動
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()

	sweepJob := sweep.NewJob(slog.Default(),
		sweep.Target{Name: "submission_limiter", Interval: cfg.LimiterSweepInterval, Sweep: submissionLimiter.Cleanup},
		sweep.Target{Name: "moment_cache", Interval: cfg.CacheSweepInterval, Sweep: momentCache.Sweep},
		sweep.Target{Name: "search_cache", Interval: cfg.CacheSweepInterval, Sweep: searchCache.Sweep},
	)
	go sweepJob.Run(sweepCtx)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	sweepCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrations")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
