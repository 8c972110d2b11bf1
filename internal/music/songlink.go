package music

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// defaultSongLinkEndpoint はsong.linkのリンク解決APIのエンドポイント。
const defaultSongLinkEndpoint = "https://api.song.link/v1-alpha.1/links"

// SongLinkClient はsong.link APIのクライアント。
// Spotifyリンクから各プラットフォームの直接リンクを解決する。
// リンク解決は補助機能のため、失敗してもエラーは返さない。
type SongLinkClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    UpstreamRecorder
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewSongLinkClient はSongLinkClientの新しいインスタンスを生成する。
// recorderにnilを渡した場合、メトリクスは記録されない。
func NewSongLinkClient(httpClient *http.Client, logger *slog.Logger, recorder UpstreamRecorder) *SongLinkClient {
	if recorder == nil {
		recorder = nopUpstream{}
	}
	return &SongLinkClient{
		httpClient: httpClient,
		logger:     logger,
		metrics:    recorder,
		endpoint:   defaultSongLinkEndpoint,
	}
}

// ResolvePlatforms はSpotifyリンクから各プラットフォームの直接リンクを解決する。
// 解決できたプラットフォームのみをマップに含めて返す。
// API障害やタイムアウト時はnilを返す（呼び出し元はデフォルトリンクを維持する）。
func (c *SongLinkClient) ResolvePlatforms(ctx context.Context, spotifyURL string) map[string]string {
	reqURL := c.endpoint + "?url=" + url.QueryEscape(spotifyURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure("songlink")
		c.logger.Debug("song.link request failed",
			slog.String("error", err.Error()),
		)
		return nil
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamLatency("songlink", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamFailure("songlink")
		return nil
	}

	var data struct {
		LinksByPlatform map[string]struct {
			URL string `json:"url"`
		} `json:"linksByPlatform"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		c.logger.Debug("song.link response parse failed",
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(data.LinksByPlatform) == 0 {
		return nil
	}

	links := make(map[string]string)
	for _, platform := range []string{"spotify", "appleMusic", "youtubeMusic"} {
		if entry, ok := data.LinksByPlatform[platform]; ok && entry.URL != "" {
			links[platform] = entry.URL
		}
	}
	return links
}

// MergePlatforms はデフォルトリンクにsong.linkの解決結果を上書きして返す。
// resolvedがnilまたは空の場合はデフォルトリンクをそのまま返す。
func MergePlatforms(defaults, resolved map[string]string) map[string]string {
	if len(resolved) == 0 {
		return defaults
	}
	merged := make(map[string]string, len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range resolved {
		merged[k] = v
	}
	return merged
}
