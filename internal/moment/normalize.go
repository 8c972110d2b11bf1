// Package moment はモーメントの取り込み・配信パイプラインを提供する。
// 正規化 → バリデーション → サニタイズ → 永続化の順に処理される。
package moment

// Request はモーメント投稿のリクエストボディ。
// 後方互換のため、ネストしたsongオブジェクト形式と
// フラットなsongId/songTitle/...形式の両方を受け付ける。
type Request struct {
	Song *SongInput `json:"song"`

	SongID        string            `json:"songId"`
	SongTitle     string            `json:"songTitle"`
	SongArtist    string            `json:"songArtist"`
	SongAlbum     string            `json:"songAlbum"`
	SongArtwork   string            `json:"songArtwork"`
	SongDuration  string            `json:"songDuration"`
	SongPlatforms map[string]string `json:"songPlatforms"`

	GeneralNote string           `json:"generalNote"`
	Highlights  []HighlightInput `json:"highlights"`
	Visibility  string           `json:"visibility"`
	CreatedAt   string           `json:"createdAt"`
}

// SongInput はネスト形式の楽曲フィールド。
type SongInput struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Artist    string            `json:"artist"`
	Album     string            `json:"album"`
	Image     string            `json:"image"`
	Platforms map[string]string `json:"platforms"`
	Duration  string            `json:"duration"`
}

// HighlightInput は投稿されたハイライト。
// インデックスはポインタにすることで「数値が指定されなかった」ことを
// ゼロ値と区別できるようにしている。
type HighlightInput struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Note       string   `json:"note"`
	StartIndex *float64 `json:"startIndex"`
	EndIndex   *float64 `json:"endIndex"`
}

// Submission は入力形式の違いを吸収した正規形の投稿データ。
// バリデータとサニタイザはこの形式のみを扱う。
type Submission struct {
	SongID        string
	SongTitle     string
	SongArtist    string
	SongAlbum     string
	SongArtwork   string
	SongDuration  string
	SongPlatforms map[string]string

	GeneralNote string
	Highlights  []HighlightInput
	// HasHighlights はhighlightsフィールドがリクエストに存在したかを示す。
	// 空配列は有効、フィールド欠落はバリデーションエラーになる。
	HasHighlights bool

	Visibility string
	CreatedAt  string
}

// Normalize はリクエストを正規形のSubmissionに変換する。
// ネスト形式とフラット形式の解決はこの1箇所でのみ行い、
// 以降のコンポーネントに入力形式の分岐を持ち込まない。
// ネスト形式のフィールドが非空の場合はそちらを優先する。
func Normalize(req *Request) Submission {
	sub := Submission{
		SongID:        req.SongID,
		SongTitle:     req.SongTitle,
		SongArtist:    req.SongArtist,
		SongAlbum:     req.SongAlbum,
		SongArtwork:   req.SongArtwork,
		SongDuration:  req.SongDuration,
		SongPlatforms: req.SongPlatforms,
		GeneralNote:   req.GeneralNote,
		Highlights:    req.Highlights,
		HasHighlights: req.Highlights != nil,
		Visibility:    req.Visibility,
		CreatedAt:     req.CreatedAt,
	}

	if s := req.Song; s != nil {
		if s.ID != "" {
			sub.SongID = s.ID
		}
		if s.Title != "" {
			sub.SongTitle = s.Title
		}
		if s.Artist != "" {
			sub.SongArtist = s.Artist
		}
		if s.Album != "" {
			sub.SongAlbum = s.Album
		}
		if s.Image != "" {
			sub.SongArtwork = s.Image
		}
		if s.Platforms != nil {
			sub.SongPlatforms = s.Platforms
		}
		if s.Duration != "" {
			sub.SongDuration = s.Duration
		}
	}

	return sub
}
