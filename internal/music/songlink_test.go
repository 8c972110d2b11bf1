package music

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
)

func newTestSongLinkClient(endpoint string) *SongLinkClient {
	c := NewSongLinkClient(http.DefaultClient, discardLogger(), nil)
	c.endpoint = endpoint
	return c
}

func TestSongLinkClient_ResolvePlatforms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("url"); got != "https://open.spotify.com/track/4u7" {
			t.Errorf("url param = %q", got)
		}
		fmt.Fprint(w, `{
			"linksByPlatform": {
				"spotify":      {"url": "https://open.spotify.com/track/4u7"},
				"appleMusic":   {"url": "https://music.apple.com/us/album/123"},
				"youtubeMusic": {"url": "https://music.youtube.com/watch?v=abc"},
				"tidal":        {"url": "https://tidal.com/track/999"}
			}
		}`)
	}))
	defer srv.Close()

	c := newTestSongLinkClient(srv.URL)

	links := c.ResolvePlatforms(context.Background(), "https://open.spotify.com/track/4u7")
	want := map[string]string{
		"spotify":      "https://open.spotify.com/track/4u7",
		"appleMusic":   "https://music.apple.com/us/album/123",
		"youtubeMusic": "https://music.youtube.com/watch?v=abc",
	}
	// 対象外プラットフォーム（tidal）は含まれない
	if !reflect.DeepEqual(links, want) {
		t.Errorf("links = %v, want %v", links, want)
	}
}

func TestSongLinkClient_ResolvePlatformsFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "サーバーエラー",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		{
			name: "不正なJSON",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "not json")
			},
		},
		{
			name: "空のlinksByPlatform",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"linksByPlatform": {}}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c := newTestSongLinkClient(srv.URL)
			// 失敗時はエラーではなくnilを返す
			if links := c.ResolvePlatforms(context.Background(), "https://open.spotify.com/track/1"); links != nil {
				t.Errorf("links = %v, want nil", links)
			}
		})
	}
}

func TestSongLinkClient_ResolvePlatformsUnreachable(t *testing.T) {
	c := newTestSongLinkClient("http://127.0.0.1:1")

	if links := c.ResolvePlatforms(context.Background(), "https://open.spotify.com/track/1"); links != nil {
		t.Errorf("接続失敗時にnil以外が返った: %v", links)
	}
}

func TestMergePlatforms(t *testing.T) {
	defaults := map[string]string{
		"spotify":      "https://open.spotify.com/track/1",
		"appleMusic":   "https://music.apple.com/search?term=a",
		"youtubeMusic": "https://music.youtube.com/search?q=a",
	}

	t.Run("解決結果で上書き", func(t *testing.T) {
		resolved := map[string]string{
			"appleMusic": "https://music.apple.com/us/album/123",
		}
		merged := MergePlatforms(defaults, resolved)
		if merged["appleMusic"] != "https://music.apple.com/us/album/123" {
			t.Errorf("appleMusic = %q", merged["appleMusic"])
		}
		// 未解決のプラットフォームはデフォルトを維持
		if merged["youtubeMusic"] != defaults["youtubeMusic"] {
			t.Errorf("youtubeMusic = %q", merged["youtubeMusic"])
		}
		// 元のマップは変更されない
		if defaults["appleMusic"] != "https://music.apple.com/search?term=a" {
			t.Error("defaultsが変更された")
		}
	})

	t.Run("nilはデフォルトをそのまま返す", func(t *testing.T) {
		merged := MergePlatforms(defaults, nil)
		if !reflect.DeepEqual(merged, defaults) {
			t.Errorf("merged = %v, want defaults", merged)
		}
	})
}
