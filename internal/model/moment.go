// Package model はドメインモデルを定義する。
package model

import "time"

// Moment は公開された楽曲シェア投稿を表す。
// 楽曲メタデータ、任意の全体ノート、ノート付きの歌詞ハイライトで構成される。
type Moment struct {
	ID            string            `json:"id"`
	SongID        string            `json:"songId"`
	SongTitle     string            `json:"songTitle"`
	SongArtist    string            `json:"songArtist"`
	SongAlbum     string            `json:"songAlbum"`
	SongArtwork   string            `json:"songArtwork"`
	SongDuration  string            `json:"songDuration"`
	SongPlatforms map[string]string `json:"songPlatforms"`
	// GeneralNote は空の場合JSONに含めない。
	// キーの有無が「ノートあり」の判定に使われるため、空文字列では保存しない。
	GeneralNote  string      `json:"generalNote,omitempty"`
	Highlights   []Highlight `json:"highlights"`
	Visibility   Visibility  `json:"visibility"`
	Views        int64       `json:"views"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastUpdated  time.Time   `json:"lastUpdated"`
	LastAccessed *time.Time  `json:"lastAccessed"`
}

// Highlight は歌詞テキストの部分範囲とそれに付けられたノートを表す。
// Momentの一部としてのみ作成される。
type Highlight struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Note       string `json:"note"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

// Visibility はモーメントの公開範囲を表す。
type Visibility string

const (
	// VisibilityPublic は全体公開。
	VisibilityPublic Visibility = "public"
	// VisibilityFollowers はフォロワー限定公開。
	VisibilityFollowers Visibility = "followers"
	// VisibilityPrivate は非公開。
	VisibilityPrivate Visibility = "private"
)

// HasGeneralNote は全体ノートが存在するかを返す。
func (m *Moment) HasGeneralNote() bool {
	return m.GeneralNote != ""
}

// HighlightCount はノート付きハイライトの件数を返す。
func (m *Moment) HighlightCount() int {
	return len(m.Highlights)
}

// Clone はMomentのディープコピーを返す。
// キャッシュに格納した値が呼び出し元の変更で壊れないようにするために使用する。
func (m *Moment) Clone() *Moment {
	c := *m
	if m.SongPlatforms != nil {
		c.SongPlatforms = make(map[string]string, len(m.SongPlatforms))
		for k, v := range m.SongPlatforms {
			c.SongPlatforms[k] = v
		}
	}
	if m.Highlights != nil {
		c.Highlights = make([]Highlight, len(m.Highlights))
		copy(c.Highlights, m.Highlights)
	}
	if m.LastAccessed != nil {
		t := *m.LastAccessed
		c.LastAccessed = &t
	}
	return &c
}
