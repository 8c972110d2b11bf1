package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/songdash/songdash/internal/lyrics"
	"github.com/songdash/songdash/internal/middleware"
	"github.com/songdash/songdash/internal/model"
)

// LyricsHandler は歌詞取得プロキシのHTTPハンドラー。
// 歌詞が取得できない場合もエラーにはせず、サンプル歌詞を返す。
type LyricsHandler struct {
	lyrics        LyricsLookup
	lyricsTimeout time.Duration
}

// NewLyricsHandler はLyricsHandlerを生成する。
func NewLyricsHandler(lyricsClient LyricsLookup, lyricsTimeout time.Duration) *LyricsHandler {
	return &LyricsHandler{
		lyrics:        lyricsClient,
		lyricsTimeout: lyricsTimeout,
	}
}

// lyricsResponse は歌詞取得のレスポンス。
type lyricsResponse struct {
	Lyrics    string           `json:"lyrics"`
	IsSample  bool             `json:"isSample"`
	Source    string           `json:"source"`
	SongInfo  *lyrics.SongInfo `json:"songInfo,omitempty"`
	Timestamp string           `json:"timestamp"`
}

// GetLyrics は歌詞を取得する。
// GET /api/lyrics?artist=xxx&title=yyy
func (h *LyricsHandler) GetLyrics(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	artist := query.Get("artist")
	title := query.Get("title")

	if artist == "" || title == "" {
		middleware.WriteErrorResponse(w, model.NewValidationError("Artist and title parameters are required"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.lyricsTimeout)
	defer cancel()

	result := h.lyrics.Lookup(ctx, artist, title)

	middleware.WriteJSON(w, http.StatusOK, lyricsResponse{
		Lyrics:    result.Lyrics,
		IsSample:  result.IsSample,
		Source:    result.Source,
		SongInfo:  result.SongInfo,
		Timestamp: middleware.Timestamp(),
	})
}
