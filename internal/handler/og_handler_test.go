package handler

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// permissiveGuard はテスト用のArtworkGuardService実装。
// ループバックアドレスへの接続を許可し、httptestサーバーに到達できるようにする。
type permissiveGuard struct {
	validateErr error
}

func (g *permissiveGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (g *permissiveGuard) ValidateURL(rawURL string) error {
	return g.validateErr
}

func doGenerateCard(t *testing.T, h *OGHandler, target string) *http.Response {
	t.Helper()
	w := httptest.NewRecorder()
	h.GenerateCard(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ボディの読み取りに失敗: %v", err)
	}
	return string(data)
}

func TestGenerateCard(t *testing.T) {
	h := NewOGHandler(&permissiveGuard{}, time.Second, 0)

	resp := doGenerateCard(t, h, "/api/og?title=Bohemian+Rhapsody&artist=Queen&lyrics=Is+this+the+real+life&note=my+favorite")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q, want image/svg+xml", ct)
	}
	if cc := resp.Header.Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}

	svg := readBody(t, resp)
	if !strings.Contains(svg, `width="1200" height="630"`) {
		t.Error("カードサイズが1200x630ではない")
	}
	for _, want := range []string{"Bohemian Rhapsody", "by Queen", "Is this the real life", "my favorite", "Created at songdash.io"} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVGに %q が含まれない", want)
		}
	}
}

func TestGenerateCard_Defaults(t *testing.T) {
	h := NewOGHandler(&permissiveGuard{}, time.Second, 0)

	// パラメータ無しでもカードは生成される
	resp := doGenerateCard(t, h, "/api/og")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	svg := readBody(t, resp)
	if !strings.Contains(svg, "Song Moment") {
		t.Error("デフォルトタイトルが無い")
	}
	if !strings.Contains(svg, "by Artist") {
		t.Error("デフォルトアーティストが無い")
	}
}

func TestGenerateCard_EscapesMarkup(t *testing.T) {
	h := NewOGHandler(&permissiveGuard{}, time.Second, 0)

	resp := doGenerateCard(t, h, "/api/og?title="+`%3Cscript%3Ealert(1)%3C/script%3E`)
	svg := readBody(t, resp)
	if strings.Contains(svg, "<script>") {
		t.Error("タイトルのマークアップがエスケープされていない")
	}
	if !strings.Contains(svg, "&lt;script&gt;") {
		t.Error("エスケープ結果が見つからない")
	}
}

func TestGenerateCard_TruncatesLongText(t *testing.T) {
	h := NewOGHandler(&permissiveGuard{}, time.Second, 0)

	longLyrics := strings.Repeat("a", 250)
	resp := doGenerateCard(t, h, "/api/og?lyrics="+longLyrics)
	svg := readBody(t, resp)

	if strings.Contains(svg, longLyrics) {
		t.Error("200文字を超える歌詞が切り詰められていない")
	}
	if !strings.Contains(svg, strings.Repeat("a", 200)+"...") {
		t.Error("切り詰め後のテキストが見つからない")
	}
}

func TestGenerateCard_EmbedsArtwork(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, "fake png bytes")
	}))
	defer imgSrv.Close()

	h := NewOGHandler(&permissiveGuard{}, time.Second, 0)

	resp := doGenerateCard(t, h, "/api/og?title=Song&artwork="+imgSrv.URL)
	svg := readBody(t, resp)
	if !strings.Contains(svg, "data:image/png;base64,") {
		t.Error("アートワークがdata URIとして埋め込まれていない")
	}
}

func TestGenerateCard_RejectedArtworkStillRenders(t *testing.T) {
	guard := &permissiveGuard{validateErr: fmt.Errorf("blocked host")}
	h := NewOGHandler(guard, time.Second, 0)

	resp := doGenerateCard(t, h, "/api/og?title=Song&artwork=https://169.254.169.254/x.png")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	svg := readBody(t, resp)
	// 拒否された画像は埋め込まれないがカード自体は返る
	if strings.Contains(svg, "<image") {
		t.Error("検証に失敗した画像が埋め込まれた")
	}
	if !strings.Contains(svg, "Song") {
		t.Error("カード本体が描画されていない")
	}
}

func TestGenerateCard_OversizedArtworkSkipped(t *testing.T) {
	imgSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(make([]byte, 2048))
	}))
	defer imgSrv.Close()

	// 上限1KBに対して2KBの画像
	h := NewOGHandler(&permissiveGuard{}, time.Second, 1024)

	resp := doGenerateCard(t, h, "/api/og?artwork="+imgSrv.URL)
	svg := readBody(t, resp)
	if strings.Contains(svg, "<image") {
		t.Error("サイズ上限を超える画像が埋め込まれた")
	}
}

func TestGenerateCard_NonImageContentSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html>not an image</html>")
	}))
	defer srv.Close()

	h := NewOGHandler(&permissiveGuard{}, time.Second, 0)

	resp := doGenerateCard(t, h, "/api/og?artwork="+srv.URL)
	svg := readBody(t, resp)
	if strings.Contains(svg, "<image") {
		t.Error("画像以外のContent-Typeが埋め込まれた")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		input string
		max   int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 7, "this is..."},
		{"日本語のテキスト", 3, "日本語..."},
		{"", 5, ""},
	}

	for _, tt := range tests {
		if got := truncate(tt.input, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.want)
		}
	}
}
