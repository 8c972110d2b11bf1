// Package music は外部音楽サービス（Spotify、song.link）のクライアントを提供する。
package music

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// defaultTokenEndpoint はSpotifyのclient credentialsトークンエンドポイント。
	defaultTokenEndpoint = "https://accounts.spotify.com/api/token"
	// defaultAPIEndpoint はSpotify Web APIのベースURL。
	defaultAPIEndpoint = "https://api.spotify.com/v1"
	// searchFetchLimit はSpotifyに要求する検索結果数。
	searchFetchLimit = 15
	// searchResultLimit はクライアントに返す検索結果の上限。
	searchResultLimit = 10
	// tokenSafetyMargin はトークン失効前に再取得を始める余裕時間。
	tokenSafetyMargin = time.Minute

	userAgent = "SongDash/1.0"
)

// Track はSpotifyから取得した楽曲情報の正規化表現。
type Track struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Artist    string            `json:"artist"`
	Album     string            `json:"album"`
	Duration  string            `json:"duration"`
	Image     string            `json:"image"`
	Platforms map[string]string `json:"platforms"`
}

// UpstreamRecorder は外部API呼び出しの計測を記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type UpstreamRecorder interface {
	RecordUpstreamLatency(service string, duration time.Duration)
	RecordUpstreamFailure(service string)
}

// nopUpstream は計測未設定時のno-op実装。
type nopUpstream struct{}

func (nopUpstream) RecordUpstreamLatency(string, time.Duration) {}
func (nopUpstream) RecordUpstreamFailure(string)                {}

// SpotifyClient はSpotify Web APIのクライアント。
// client credentialsフローのアクセストークンをプロセス内にキャッシュする。
type SpotifyClient struct {
	httpClient   *http.Client
	logger       *slog.Logger
	metrics      UpstreamRecorder
	clientID     string
	clientSecret string

	// テスト用にエンドポイントを差し替え可能
	tokenEndpoint string
	apiEndpoint   string

	mu             sync.Mutex
	cachedToken    string
	tokenExpiresAt time.Time

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewSpotifyClient はSpotifyClientの新しいインスタンスを生成する。
// recorderにnilを渡した場合、メトリクスは記録されない。
func NewSpotifyClient(httpClient *http.Client, logger *slog.Logger, clientID, clientSecret string, recorder UpstreamRecorder) *SpotifyClient {
	if recorder == nil {
		recorder = nopUpstream{}
	}
	return &SpotifyClient{
		httpClient:    httpClient,
		logger:        logger,
		metrics:       recorder,
		clientID:      clientID,
		clientSecret:  clientSecret,
		tokenEndpoint: defaultTokenEndpoint,
		apiEndpoint:   defaultAPIEndpoint,
		now:           time.Now,
	}
}

// Enabled は認証情報が設定されているかを返す。
// 未設定の場合、検索・楽曲取得はサービス無効として扱う。
func (c *SpotifyClient) Enabled() bool {
	return c.clientID != "" && c.clientSecret != ""
}

// spotifyTrack はSpotify APIの楽曲レスポンス。
type spotifyTrack struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Name   string `json:"name"`
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
	DurationMs   int `json:"duration_ms"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// SearchTracks は楽曲を検索し、正規化したトラック一覧を返す。
// 結果は最大10件。プラットフォームリンクにはSpotifyの直接リンクと
// Apple Music・YouTube Musicの検索リンクが設定される。
func (c *SpotifyClient) SearchTracks(ctx context.Context, query string) ([]Track, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/search?q=%s&type=track&limit=%d&market=US",
		c.apiEndpoint, url.QueryEscape(query), searchFetchLimit)

	var searchResp struct {
		Tracks struct {
			Items []spotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := c.doAPIRequest(ctx, reqURL, token, &searchResp); err != nil {
		return nil, fmt.Errorf("Spotify検索に失敗しました: %w", err)
	}

	items := searchResp.Tracks.Items
	if len(items) > searchResultLimit {
		items = items[:searchResultLimit]
	}

	tracks := make([]Track, 0, len(items))
	for _, item := range items {
		tracks = append(tracks, normalizeTrack(item, joinArtists(item)))
	}
	return tracks, nil
}

// GetTrack はIDで楽曲を1件取得する。
// 楽曲が存在しない場合はnilを返す。
func (c *SpotifyClient) GetTrack(ctx context.Context, trackID string) (*Track, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	reqURL := fmt.Sprintf("%s/tracks/%s", c.apiEndpoint, url.PathEscape(trackID))

	var item spotifyTrack
	if err := c.doAPIRequest(ctx, reqURL, token, &item); err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("Spotify楽曲の取得に失敗しました: %w", err)
	}

	primaryArtist := ""
	if len(item.Artists) > 0 {
		primaryArtist = item.Artists[0].Name
	}
	track := normalizeTrack(item, primaryArtist)
	return &track, nil
}

// token はキャッシュされたアクセストークンを返す。
// 失効している場合はclient credentialsフローで再取得する。
func (c *SpotifyClient) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cachedToken != "" && c.now().Before(c.tokenExpiresAt) {
		return c.cachedToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenEndpoint,
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", fmt.Errorf("トークンリクエストの作成に失敗しました: %w", err)
	}
	credentials := base64.StdEncoding.EncodeToString([]byte(c.clientID + ":" + c.clientSecret))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+credentials)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure("spotify")
		c.logger.Error("spotify token request failed",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("Spotifyトークンの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamLatency("spotify", c.now().Sub(start))

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamFailure("spotify")
		return "", fmt.Errorf("Spotifyトークンエンドポイントがステータス %d を返しました", resp.StatusCode)
	}

	var tokenData struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenData); err != nil {
		return "", fmt.Errorf("トークンレスポンスのパースに失敗しました: %w", err)
	}

	c.cachedToken = tokenData.AccessToken
	c.tokenExpiresAt = c.now().Add(time.Duration(tokenData.ExpiresIn)*time.Second - tokenSafetyMargin)

	return c.cachedToken, nil
}

// notFoundError はSpotify APIの404応答を表す内部エラー。
type notFoundError struct{}

func (notFoundError) Error() string { return "リソースが見つかりません" }

func isNotFound(err error) bool {
	_, ok := err.(notFoundError)
	return ok
}

// doAPIRequest は認証付きGETリクエストを実行してJSONをデコードする。
func (c *SpotifyClient) doAPIRequest(ctx context.Context, reqURL, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure("spotify")
		c.logger.Error("spotify api request failed",
			slog.String("error", err.Error()),
		)
		return err
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamLatency("spotify", c.now().Sub(start))

	if resp.StatusCode == http.StatusNotFound {
		return notFoundError{}
	}
	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamFailure("spotify")
		return fmt.Errorf("Spotify APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}

// normalizeTrack はSpotifyのレスポンスを正規化表現に変換する。
func normalizeTrack(item spotifyTrack, artist string) Track {
	image := "/placeholder.svg"
	if len(item.Album.Images) > 0 && item.Album.Images[0].URL != "" {
		image = item.Album.Images[0].URL
	}

	primaryArtist := ""
	if len(item.Artists) > 0 {
		primaryArtist = item.Artists[0].Name
	}

	return Track{
		ID:        item.ID,
		Title:     item.Name,
		Artist:    artist,
		Album:     item.Album.Name,
		Duration:  FormatDuration(item.DurationMs),
		Image:     image,
		Platforms: DefaultPlatforms(item.Name, primaryArtist, item.ExternalURLs.Spotify),
	}
}

// joinArtists は全アーティスト名をカンマ区切りで連結する。
func joinArtists(item spotifyTrack) string {
	names := make([]string, 0, len(item.Artists))
	for _, a := range item.Artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

// FormatDuration はミリ秒を"分:秒"形式（例: 3:05）に変換する。
func FormatDuration(ms int) string {
	minutes := ms / 60000
	seconds := (ms % 60000) / 1000
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// DefaultPlatforms は各プラットフォームのデフォルトリンクを返す。
// Spotifyは直接リンク、Apple MusicとYouTube Musicは検索リンクになる。
// song.linkで解決できた場合は上書きされる。
func DefaultPlatforms(title, artist, spotifyURL string) map[string]string {
	query := url.QueryEscape(title + " " + artist)
	return map[string]string{
		"spotify":      spotifyURL,
		"appleMusic":   "https://music.apple.com/search?term=" + query,
		"youtubeMusic": "https://music.youtube.com/search?q=" + query,
	}
}
