// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/songdash/songdash/internal/metrics"
	"github.com/songdash/songdash/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	SubmissionLimiter *middleware.SubmissionLimiter
	GeneralLimiter    *middleware.GeneralRateLimiter

	// メトリクス（nilの場合は記録されない）
	Collector *metrics.Collector
	Gatherer  prometheus.Gatherer

	// ハンドラー
	MomentService MomentServiceInterface
	SearchHandler *SearchHandler
	SongHandler   *SongHandler
	LyricsHandler *LyricsHandler
	OGHandler     *OGHandler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → SecurityHeaders → CORS
//
// /healthと/metricsはレート制限の外に配置する。
// /api/* には全体レート制限、POST /api/momentsには投稿専用の
// 固定ウィンドウレート制限が追加で適用される。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	var statusRecorder middleware.HTTPStatusRecorder
	var rateLimitRecorder middleware.RateLimitRecorder
	if deps.Collector != nil {
		statusRecorder = deps.Collector
		rateLimitRecorder = deps.Collector
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, statusRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	momentHandler := NewMomentHandler(deps.MomentService)

	// ヘルスチェック（監視系はレート制限の対象外）
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// APIルート（全体レート制限を適用）
	r.Group(func(r chi.Router) {
		r.Use(deps.GeneralLimiter.Middleware(rateLimitRecorder))

		r.Route("/api/moments", func(r chi.Router) {
			// POST は投稿専用の固定ウィンドウレート制限を追加
			r.With(deps.SubmissionLimiter.Middleware(rateLimitRecorder)).Post("/", momentHandler.CreateMoment)
			r.Get("/", momentHandler.GetMoments)
		})

		r.Get("/api/search", deps.SearchHandler.Search)
		r.Get("/api/songs/{id}", deps.SongHandler.GetSong)
		r.Get("/api/lyrics", deps.LyricsHandler.GetLyrics)
		r.Get("/api/og", deps.OGHandler.GenerateCard)
	})

	return r
}
