package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/songdash/songdash/internal/cache"
	"github.com/songdash/songdash/internal/middleware"
	"github.com/songdash/songdash/internal/model"
	"github.com/songdash/songdash/internal/music"
)

// minSearchQueryLength は検索クエリの最小文字数。
const minSearchQueryLength = 2

// songLinkBatchSize はsong.linkリンク解決の同時実行数の上限。
const songLinkBatchSize = 3

// TrackSearcher はSpotify検索クライアントのインターフェース。
type TrackSearcher interface {
	Enabled() bool
	SearchTracks(ctx context.Context, query string) ([]music.Track, error)
}

// PlatformResolver はsong.linkリンク解決クライアントのインターフェース。
type PlatformResolver interface {
	ResolvePlatforms(ctx context.Context, spotifyURL string) map[string]string
}

// SearchCacheRecorder は検索キャッシュの計測インターフェース。
type SearchCacheRecorder interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// SearchHandler は楽曲検索プロキシのHTTPハンドラー。
// 検索結果は正規化クエリ単位でキャッシュされる。
// 上流障害時はエラーではなく空の結果を返す（degrade, never fail）。
type SearchHandler struct {
	spotify         TrackSearcher
	songlink        PlatformResolver
	cache           *cache.TTLCache
	metrics         SearchCacheRecorder
	upstreamTimeout time.Duration
	songlinkTimeout time.Duration
}

// NewSearchHandler はSearchHandlerを生成する。
// metricsにnilを渡した場合、キャッシュ計測は記録されない。
func NewSearchHandler(
	spotify TrackSearcher,
	songlink PlatformResolver,
	searchCache *cache.TTLCache,
	metrics SearchCacheRecorder,
	upstreamTimeout, songlinkTimeout time.Duration,
) *SearchHandler {
	return &SearchHandler{
		spotify:         spotify,
		songlink:        songlink,
		cache:           searchCache,
		metrics:         metrics,
		upstreamTimeout: upstreamTimeout,
		songlinkTimeout: songlinkTimeout,
	}
}

// searchResponse は検索結果のレスポンス。
type searchResponse struct {
	Results   []music.Track `json:"results"`
	Timestamp string        `json:"timestamp"`
}

// Search は楽曲を検索する。
// GET /api/search?q=xxx
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if len([]rune(query)) < minSearchQueryLength {
		middleware.WriteErrorResponse(w, model.NewValidationError("Query must be at least 2 characters"))
		return
	}

	cacheKey := "search:" + strings.ToLower(query)
	if cached, ok := h.cache.Get(cacheKey); ok {
		h.recordCacheHit()
		middleware.WriteJSON(w, http.StatusOK, searchResponse{
			Results:   cached.([]music.Track),
			Timestamp: middleware.Timestamp(),
		})
		return
	}
	h.recordCacheMiss()

	tracks := h.searchTracks(r.Context(), query)

	// 上流障害時もキャッシュする（短TTLのため障害中の連打を抑えられる）
	h.cache.Set(cacheKey, tracks)

	middleware.WriteJSON(w, http.StatusOK, searchResponse{
		Results:   tracks,
		Timestamp: middleware.Timestamp(),
	})
}

// searchTracks はSpotify検索とsong.linkリンク解決を実行する。
// どの段階で失敗しても空スライスを返し、エラーは呼び出し元に伝播しない。
func (h *SearchHandler) searchTracks(ctx context.Context, query string) []music.Track {
	if !h.spotify.Enabled() {
		return []music.Track{}
	}

	searchCtx, cancel := context.WithTimeout(ctx, h.upstreamTimeout)
	defer cancel()

	tracks, err := h.spotify.SearchTracks(searchCtx, query)
	if err != nil {
		slog.Warn("track search failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return []music.Track{}
	}
	if len(tracks) == 0 {
		return []music.Track{}
	}

	h.enrichPlatforms(ctx, tracks)
	return tracks
}

// enrichPlatforms は各トラックのプラットフォームリンクをsong.linkで解決する。
// 同時実行数を制限したバッチで処理し、解決失敗はデフォルトリンクのままにする。
func (h *SearchHandler) enrichPlatforms(ctx context.Context, tracks []music.Track) {
	sem := make(chan struct{}, songLinkBatchSize)
	var wg sync.WaitGroup

	for i := range tracks {
		spotifyURL := tracks[i].Platforms["spotify"]
		if spotifyURL == "" {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(track *music.Track, url string) {
			defer wg.Done()
			defer func() { <-sem }()

			linkCtx, cancel := context.WithTimeout(ctx, h.songlinkTimeout)
			defer cancel()

			resolved := h.songlink.ResolvePlatforms(linkCtx, url)
			track.Platforms = music.MergePlatforms(track.Platforms, resolved)
		}(&tracks[i], spotifyURL)
	}

	wg.Wait()
}

func (h *SearchHandler) recordCacheHit() {
	if h.metrics != nil {
		h.metrics.RecordCacheHit("search")
	}
}

func (h *SearchHandler) recordCacheMiss() {
	if h.metrics != nil {
		h.metrics.RecordCacheMiss("search")
	}
}
