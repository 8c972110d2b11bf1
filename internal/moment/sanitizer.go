package moment

import (
	"fmt"
	"strings"
	"time"

	"github.com/songdash/songdash/internal/model"
)

// Sanitize はバリデーション済みの投稿データを正規の保存形式に変換する。
// Validateを通過した入力を前提とし、エラーを返さない。
//
//   - 文字列フィールドをトリムし、任意フィールドを空文字列・空マップで埋める
//   - ノートが空のハイライトを除去する（除去後のインデックスでフォールバックIDを採番）
//   - 空の全体ノートはフィールドごと省略される（空文字列として保存しない）
//   - createdAtが未指定の場合のみ現在時刻を使用する
//
// createdAtのデフォルト以外に時刻・乱数への依存はなく、同一入力には同一出力を返す。
func Sanitize(sub Submission) model.Moment {
	m := model.Moment{
		SongID:        strings.TrimSpace(sub.SongID),
		SongTitle:     strings.TrimSpace(sub.SongTitle),
		SongArtist:    strings.TrimSpace(sub.SongArtist),
		SongAlbum:     strings.TrimSpace(sub.SongAlbum),
		SongArtwork:   strings.TrimSpace(sub.SongArtwork),
		SongDuration:  strings.TrimSpace(sub.SongDuration),
		SongPlatforms: sub.SongPlatforms,
		GeneralNote:   strings.TrimSpace(sub.GeneralNote),
		Visibility:    sanitizeVisibility(sub.Visibility),
		CreatedAt:     sanitizeCreatedAt(sub.CreatedAt),
	}

	if m.SongPlatforms == nil {
		m.SongPlatforms = map[string]string{}
	}

	// ノート付きハイライトのみを残す。
	// フォールバックIDはフィルタ後の連番で採番する。
	m.Highlights = make([]model.Highlight, 0, len(sub.Highlights))
	for _, h := range sub.Highlights {
		note := strings.TrimSpace(h.Note)
		if note == "" {
			continue
		}

		id := h.ID
		if id == "" {
			id = fmt.Sprintf("highlight-%d", len(m.Highlights))
		}

		m.Highlights = append(m.Highlights, model.Highlight{
			ID:         id,
			Text:       strings.TrimSpace(h.Text),
			Note:       note,
			StartIndex: int(*h.StartIndex),
			EndIndex:   int(*h.EndIndex),
		})
	}

	return m
}

// sanitizeVisibility は公開範囲を検証し、不正値・未指定はpublicに倒す。
func sanitizeVisibility(v string) model.Visibility {
	switch model.Visibility(v) {
	case model.VisibilityFollowers:
		return model.VisibilityFollowers
	case model.VisibilityPrivate:
		return model.VisibilityPrivate
	default:
		return model.VisibilityPublic
	}
}

// sanitizeCreatedAt はクライアント指定の作成時刻をパースする。
// RFC3339として解釈できない場合はサーバー時刻を使用する。
func sanitizeCreatedAt(raw string) time.Time {
	if raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
