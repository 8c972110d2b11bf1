package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/songdash/songdash/internal/lyrics"
	"github.com/songdash/songdash/internal/middleware"
	"github.com/songdash/songdash/internal/model"
	"github.com/songdash/songdash/internal/music"
)

// TrackFetcher はSpotify楽曲取得クライアントのインターフェース。
type TrackFetcher interface {
	Enabled() bool
	GetTrack(ctx context.Context, trackID string) (*music.Track, error)
}

// LyricsLookup は歌詞取得クライアントのインターフェース。
type LyricsLookup interface {
	Lookup(ctx context.Context, artist, title string) lyrics.Result
}

// SongHandler は楽曲詳細プロキシのHTTPハンドラー。
// Spotifyの楽曲情報にプラットフォームリンクと歌詞を付加して返す。
type SongHandler struct {
	spotify         TrackFetcher
	songlink        PlatformResolver
	lyrics          LyricsLookup
	upstreamTimeout time.Duration
	songlinkTimeout time.Duration
	lyricsTimeout   time.Duration
}

// NewSongHandler はSongHandlerを生成する。
func NewSongHandler(
	spotify TrackFetcher,
	songlink PlatformResolver,
	lyricsClient LyricsLookup,
	upstreamTimeout, songlinkTimeout, lyricsTimeout time.Duration,
) *SongHandler {
	return &SongHandler{
		spotify:         spotify,
		songlink:        songlink,
		lyrics:          lyricsClient,
		upstreamTimeout: upstreamTimeout,
		songlinkTimeout: songlinkTimeout,
		lyricsTimeout:   lyricsTimeout,
	}
}

// songResponse は楽曲詳細のレスポンス。
type songResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Artist    string            `json:"artist"`
	Album     string            `json:"album"`
	Artwork   string            `json:"artwork"`
	Platforms map[string]string `json:"platforms"`
	Duration  string            `json:"duration"`
	Lyrics    string            `json:"lyrics"`
	Timestamp string            `json:"timestamp"`
}

// GetSong は楽曲詳細を取得する。
// GET /api/songs/{id}
func (h *SongHandler) GetSong(w http.ResponseWriter, r *http.Request) {
	songID := chi.URLParam(r, "id")

	if !h.spotify.Enabled() {
		middleware.WriteErrorResponse(w, model.NewServiceUnavailableError("Spotify service unavailable"))
		return
	}

	trackCtx, cancel := context.WithTimeout(r.Context(), h.upstreamTimeout)
	defer cancel()

	track, err := h.spotify.GetTrack(trackCtx, songID)
	if err != nil {
		slog.Error("track fetch failed",
			slog.String("song_id", songID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}
	if track == nil {
		middleware.WriteErrorResponse(w, model.NewSongNotFoundError())
		return
	}

	// プラットフォームリンクの解決（失敗してもデフォルトリンクで続行）
	linkCtx, linkCancel := context.WithTimeout(r.Context(), h.songlinkTimeout)
	defer linkCancel()
	resolved := h.songlink.ResolvePlatforms(linkCtx, track.Platforms["spotify"])
	platforms := music.MergePlatforms(track.Platforms, resolved)

	// 歌詞の取得（取得できない場合はサンプル歌詞が返る）
	lyricsCtx, lyricsCancel := context.WithTimeout(r.Context(), h.lyricsTimeout)
	defer lyricsCancel()
	lyricsResult := h.lyrics.Lookup(lyricsCtx, track.Artist, track.Title)

	middleware.WriteJSON(w, http.StatusOK, songResponse{
		ID:        track.ID,
		Title:     track.Title,
		Artist:    track.Artist,
		Album:     track.Album,
		Artwork:   track.Image,
		Platforms: platforms,
		Duration:  track.Duration,
		Lyrics:    lyricsResult.Lyrics,
		Timestamp: middleware.Timestamp(),
	})
}
