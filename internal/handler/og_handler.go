package handler

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/songdash/songdash/internal/security"
)

const (
	// ogCardWidth / ogCardHeight はOGカードの標準サイズ。
	ogCardWidth  = 1200
	ogCardHeight = 630

	// maxOGLyricsLength はカードに表示する歌詞の最大文字数。
	maxOGLyricsLength = 200
	// maxOGNoteLength はカードに表示するノートの最大文字数。
	maxOGNoteLength = 150

	// maxArtworkBytes は埋め込むアートワーク画像の最大バイト数。
	maxArtworkBytes = 512 * 1024
)

// OGHandler はSNS共有用のOGカード画像（SVG）を生成するHTTPハンドラー。
// アートワークURLはSSRF防止クライアント経由でのみ取得し、
// 取得できない場合はプレースホルダーで描画する。
type OGHandler struct {
	guard          security.ArtworkGuardService
	artworkTimeout time.Duration
	maxArtworkSize int64
}

// NewOGHandler はOGHandlerを生成する。
func NewOGHandler(guard security.ArtworkGuardService, artworkTimeout time.Duration, maxArtworkSize int64) *OGHandler {
	if maxArtworkSize <= 0 {
		maxArtworkSize = maxArtworkBytes
	}
	return &OGHandler{
		guard:          guard,
		artworkTimeout: artworkTimeout,
		maxArtworkSize: maxArtworkSize,
	}
}

// GenerateCard はOGカードを生成する。
// GET /api/og?title=xxx&artist=yyy&lyrics=zzz&note=www&artwork=https://...
// どのパラメータが欠けていてもカード自体は必ず生成される。
func (h *OGHandler) GenerateCard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	title := query.Get("title")
	if title == "" {
		title = "Song Moment"
	}
	artist := query.Get("artist")
	if artist == "" {
		artist = "Artist"
	}
	lyricsText := truncate(query.Get("lyrics"), maxOGLyricsLength)
	note := truncate(query.Get("note"), maxOGNoteLength)

	artworkDataURI := ""
	if artworkURL := query.Get("artwork"); artworkURL != "" {
		artworkDataURI = h.fetchArtwork(artworkURL)
	}

	svg := renderCard(title, artist, lyricsText, note, artworkDataURI)

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, svg)
}

// fetchArtwork はアートワーク画像を取得してdata URIとして返す。
// URL検証・取得・サイズ制限のいずれかに失敗した場合は空文字列を返す。
func (h *OGHandler) fetchArtwork(artworkURL string) string {
	if err := h.guard.ValidateURL(artworkURL); err != nil {
		slog.Warn("artwork URL rejected",
			slog.String("url", artworkURL),
			slog.String("error", err.Error()),
		)
		return ""
	}

	client := h.guard.NewSafeClient(h.artworkTimeout)
	resp, err := client.Get(artworkURL)
	if err != nil {
		slog.Debug("artwork fetch failed",
			slog.String("error", err.Error()),
		)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.maxArtworkSize+1))
	if err != nil || int64(len(data)) > h.maxArtworkSize {
		return ""
	}

	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// truncate は文字数上限を超えるテキストを切り詰めて"..."を付与する。
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// escapeXML はSVGに埋め込むテキストをエスケープする。
func escapeXML(s string) string {
	var b strings.Builder
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// renderCard はOGカードのSVGを組み立てる。
func renderCard(title, artist, lyricsText, note, artworkDataURI string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		ogCardWidth, ogCardHeight, ogCardWidth, ogCardHeight)

	// 背景グラデーション
	b.WriteString(`<defs><linearGradient id="bg" x1="0" y1="0" x2="1" y2="1">` +
		`<stop offset="0%" stop-color="#f8fafc"/>` +
		`<stop offset="100%" stop-color="#e2e8f0"/>` +
		`</linearGradient></defs>`)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="url(#bg)"/>`, ogCardWidth, ogCardHeight)

	// アートワーク（取得できた場合のみ）
	textX := ogCardWidth / 2
	if artworkDataURI != "" {
		fmt.Fprintf(&b, `<image x="80" y="175" width="280" height="280" href="%s" preserveAspectRatio="xMidYMid slice"/>`,
			artworkDataURI)
		textX = 740
	}

	// 曲名とアーティスト
	fmt.Fprintf(&b, `<text x="%d" y="180" text-anchor="middle" font-family="sans-serif" font-size="48" font-weight="bold" fill="#1f2937">%s</text>`,
		textX, escapeXML(title))
	fmt.Fprintf(&b, `<text x="%d" y="240" text-anchor="middle" font-family="sans-serif" font-size="32" fill="#6b7280">by %s</text>`,
		textX, escapeXML(artist))

	// 歌詞
	if lyricsText != "" {
		fmt.Fprintf(&b, `<text x="%d" y="330" text-anchor="middle" font-family="sans-serif" font-size="24" font-style="italic" fill="#374151">&#8220;%s&#8221;</text>`,
			textX, escapeXML(lyricsText))
	}

	// ノート
	if note != "" {
		fmt.Fprintf(&b, `<text x="%d" y="420" text-anchor="middle" font-family="sans-serif" font-size="20" fill="#1e40af">%s</text>`,
			textX, escapeXML(note))
	}

	// フッターブランディング
	fmt.Fprintf(&b, `<text x="%d" y="%d" text-anchor="end" font-family="sans-serif" font-size="18" font-weight="600" fill="#111827">Created at songdash.io</text>`,
		ogCardWidth-40, ogCardHeight-40)

	b.WriteString(`</svg>`)
	return b.String()
}
