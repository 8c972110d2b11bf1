// Package lyrics は歌詞の取得を提供する。
// Geniusで楽曲を特定し、lrclib.netから歌詞本文を取得する。
// すべての取得元が失敗した場合はサンプル歌詞にフォールバックし、
// エラーは呼び出し元に返さない。
package lyrics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const (
	// defaultGeniusEndpoint はGeniusの検索APIのエンドポイント。
	defaultGeniusEndpoint = "https://api.genius.com/search"
	// defaultLrclibEndpoint はlrclib.netの歌詞取得APIのエンドポイント。
	defaultLrclibEndpoint = "https://lrclib.net/api/get"
	// defaultBackupEndpoint はlyrics.ovhのバックアップAPIのベースURL。
	defaultBackupEndpoint = "https://api.lyrics.ovh/v1"

	userAgent = "SongDash/1.0"
)

// queryStripPattern は検索クエリから記号を除去するためのパターン。
// 英数字・アンダースコア・空白のみを残す。
var queryStripPattern = regexp.MustCompile(`[^\w\s]`)

// SongInfo は特定された楽曲のメタデータ。
type SongInfo struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Album    string `json:"album,omitempty"`
	Year     string `json:"year,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// Result は歌詞取得の結果。
// 実際の歌詞が取得できなかった場合、IsSampleがtrueになる。
type Result struct {
	Lyrics   string    `json:"lyrics"`
	IsSample bool      `json:"isSample"`
	Source   string    `json:"source"`
	SongInfo *SongInfo `json:"songInfo,omitempty"`
}

// UpstreamRecorder は外部API呼び出しの計測を記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type UpstreamRecorder interface {
	RecordUpstreamLatency(service string, duration time.Duration)
	RecordUpstreamFailure(service string)
}

type nopUpstream struct{}

func (nopUpstream) RecordUpstreamLatency(string, time.Duration) {}
func (nopUpstream) RecordUpstreamFailure(string)                {}

// Client は歌詞取得のクライアント。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     UpstreamRecorder
	geniusToken string

	// テスト用にエンドポイントを差し替え可能
	geniusEndpoint string
	lrclibEndpoint string
	backupEndpoint string
}

// NewClient はClientの新しいインスタンスを生成する。
// geniusTokenが空の場合、Lookupは常にサンプル歌詞を返す。
// recorderにnilを渡した場合、メトリクスは記録されない。
func NewClient(httpClient *http.Client, logger *slog.Logger, geniusToken string, recorder UpstreamRecorder) *Client {
	if recorder == nil {
		recorder = nopUpstream{}
	}
	return &Client{
		httpClient:     httpClient,
		logger:         logger,
		metrics:        recorder,
		geniusToken:    geniusToken,
		geniusEndpoint: defaultGeniusEndpoint,
		lrclibEndpoint: defaultLrclibEndpoint,
		backupEndpoint: defaultBackupEndpoint,
	}
}

// geniusSong はGenius検索で特定された楽曲。
type geniusSong struct {
	Title  string
	Artist string
	Album  string
	Year   string
}

// Lookup はアーティスト名と曲名から歌詞を取得する。
// Geniusで正式な曲名・アーティスト名を特定し、lrclib.netから本文を取得、
// 失敗時はlyrics.ovhを試す。いずれも失敗した場合はサンプル歌詞を返す。
// この関数はエラーを返さない（取得失敗はResult.IsSampleで表現される）。
func (c *Client) Lookup(ctx context.Context, artist, title string) Result {
	if c.geniusToken == "" {
		return Result{
			Lyrics:   SampleLyrics(artist, title),
			IsSample: true,
			Source:   "sample",
		}
	}

	song, err := c.searchGenius(ctx, artist, title)
	if err != nil {
		c.logger.Warn("genius search failed",
			slog.String("artist", artist),
			slog.String("title", title),
			slog.String("error", err.Error()),
		)
		return Result{
			Lyrics:   SampleLyrics(artist, title),
			IsSample: true,
			Source:   "sample",
		}
	}
	if song == nil {
		return Result{
			Lyrics:   SampleLyrics(artist, title),
			IsSample: true,
			Source:   "sample",
		}
	}

	info := &SongInfo{
		Title:  song.Title,
		Artist: song.Artist,
		Album:  song.Album,
		Year:   song.Year,
	}

	if lyricsText, duration, ok := c.fetchLrclib(ctx, song.Artist, song.Title); ok {
		info.Duration = duration
		return Result{
			Lyrics:   lyricsText,
			IsSample: false,
			Source:   "lrclib.net",
			SongInfo: info,
		}
	}

	if lyricsText, ok := c.fetchBackup(ctx, song.Artist, song.Title); ok {
		return Result{
			Lyrics:   lyricsText,
			IsSample: false,
			Source:   "lyrics.ovh",
			SongInfo: info,
		}
	}

	// 歌詞本文は取得できなかったが、Geniusのメタデータは返す
	return Result{
		Lyrics:   enhancedSampleLyrics(song.Title, song.Artist, song.Year, song.Album),
		IsSample: true,
		Source:   "sample_with_metadata",
		SongInfo: info,
	}
}

// searchGenius はGeniusで楽曲を検索し、最上位の結果を返す。
// 結果が無い場合はnilを返す。
func (c *Client) searchGenius(ctx context.Context, artist, title string) (*geniusSong, error) {
	query := strings.TrimSpace(queryStripPattern.ReplaceAllString(artist+" "+title, ""))
	reqURL := c.geniusEndpoint + "?q=" + url.QueryEscape(query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.geniusToken)
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure("genius")
		return nil, err
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamLatency("genius", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamFailure("genius")
		return nil, fmt.Errorf("Genius APIがステータス %d を返しました", resp.StatusCode)
	}

	var searchData struct {
		Response struct {
			Hits []struct {
				Result struct {
					Title         string `json:"title"`
					PrimaryArtist struct {
						Name string `json:"name"`
					} `json:"primary_artist"`
					Album *struct {
						Name string `json:"name"`
					} `json:"album"`
					ReleaseDateForDisplay string `json:"release_date_for_display"`
				} `json:"result"`
			} `json:"hits"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchData); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	hits := searchData.Response.Hits
	if len(hits) == 0 {
		return nil, nil
	}

	best := hits[0].Result
	song := &geniusSong{
		Title:  best.Title,
		Artist: best.PrimaryArtist.Name,
		Year:   best.ReleaseDateForDisplay,
	}
	if best.Album != nil {
		song.Album = best.Album.Name
	}
	return song, nil
}

// fetchLrclib はlrclib.netから歌詞本文を取得する。
// プレーン歌詞を優先し、無い場合は同期歌詞からタイムスタンプを除去して使う。
func (c *Client) fetchLrclib(ctx context.Context, artist, title string) (string, int, bool) {
	reqURL := fmt.Sprintf("%s?artist_name=%s&track_name=%s",
		c.lrclibEndpoint, url.QueryEscape(artist), url.QueryEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", 0, false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure("lrclib")
		c.logger.Debug("lrclib request failed",
			slog.String("error", err.Error()),
		)
		return "", 0, false
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamLatency("lrclib", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamFailure("lrclib")
		return "", 0, false
	}

	var data struct {
		PlainLyrics  string `json:"plainLyrics"`
		SyncedLyrics string `json:"syncedLyrics"`
		Duration     int    `json:"duration"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", 0, false
	}

	lyricsText := data.PlainLyrics
	if lyricsText == "" && data.SyncedLyrics != "" {
		lyricsText = stripTimestamps(data.SyncedLyrics)
	}
	lyricsText = strings.TrimSpace(lyricsText)
	if lyricsText == "" {
		return "", 0, false
	}
	return lyricsText, data.Duration, true
}

// fetchBackup はlyrics.ovhのバックアップAPIから歌詞を取得する。
func (c *Client) fetchBackup(ctx context.Context, artist, title string) (string, bool) {
	reqURL := fmt.Sprintf("%s/%s/%s",
		c.backupEndpoint, url.PathEscape(artist), url.PathEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordUpstreamFailure("lyricsovh")
		return "", false
	}
	defer resp.Body.Close()
	c.metrics.RecordUpstreamLatency("lyricsovh", time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.metrics.RecordUpstreamFailure("lyricsovh")
		return "", false
	}

	var data struct {
		Lyrics string `json:"lyrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", false
	}

	lyricsText := strings.TrimSpace(data.Lyrics)
	if lyricsText == "" || strings.Contains(lyricsText, "<!DOCTYPE html>") {
		return "", false
	}
	return lyricsText, true
}

// timestampPattern はLRC形式のタイムスタンプ [mm:ss.xx] にマッチする。
var timestampPattern = regexp.MustCompile(`^\[\d{2}:\d{2}\.\d{2}\]`)

// stripTimestamps は同期歌詞からタイムスタンプを除去し、空行を取り除く。
func stripTimestamps(synced string) string {
	lines := strings.Split(synced, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimSpace(timestampPattern.ReplaceAllString(line, ""))
		if text != "" {
			out = append(out, text)
		}
	}
	return strings.Join(out, "\n")
}
