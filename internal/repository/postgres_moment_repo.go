package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/songdash/songdash/internal/model"
)

// PostgresMomentRepo はPostgreSQLを使用したモーメントリポジトリ。
// highlightsとsong_platformsはJSONBカラムに格納する。
type PostgresMomentRepo struct {
	db *sql.DB
}

// NewPostgresMomentRepo はPostgresMomentRepoを生成する。
func NewPostgresMomentRepo(db *sql.DB) *PostgresMomentRepo {
	return &PostgresMomentRepo{db: db}
}

// FindByID は指定IDのモーメントを取得する。見つからない場合はnilを返す。
func (r *PostgresMomentRepo) FindByID(ctx context.Context, id string) (*model.Moment, error) {
	m := &model.Moment{}
	var generalNote sql.NullString
	var lastAccessed sql.NullTime
	var platformsJSON, highlightsJSON []byte

	err := r.db.QueryRowContext(ctx,
		`SELECT id, song_id, song_title, song_artist, song_album, song_artwork,
		        song_duration, song_platforms, general_note, highlights,
		        visibility, views, created_at, last_updated, last_accessed
		 FROM moments WHERE id = $1`,
		id,
	).Scan(
		&m.ID, &m.SongID, &m.SongTitle, &m.SongArtist, &m.SongAlbum, &m.SongArtwork,
		&m.SongDuration, &platformsJSON, &generalNote, &highlightsJSON,
		&m.Visibility, &m.Views, &m.CreatedAt, &m.LastUpdated, &lastAccessed,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("モーメントの取得に失敗しました: %w", err)
	}

	if generalNote.Valid {
		m.GeneralNote = generalNote.String
	}
	if lastAccessed.Valid {
		t := lastAccessed.Time
		m.LastAccessed = &t
	}
	if err := json.Unmarshal(platformsJSON, &m.SongPlatforms); err != nil {
		return nil, fmt.Errorf("song_platformsのデコードに失敗しました: %w", err)
	}
	if err := json.Unmarshal(highlightsJSON, &m.Highlights); err != nil {
		return nil, fmt.Errorf("highlightsのデコードに失敗しました: %w", err)
	}

	return m, nil
}

// Exists は指定IDのモーメントが存在するかを返す。
func (r *PostgresMomentRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM moments WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("モーメントの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create はモーメントを作成する。
func (r *PostgresMomentRepo) Create(ctx context.Context, m *model.Moment) error {
	platformsJSON, err := json.Marshal(platformsOrEmpty(m.SongPlatforms))
	if err != nil {
		return fmt.Errorf("song_platformsのエンコードに失敗しました: %w", err)
	}
	highlightsJSON, err := json.Marshal(highlightsOrEmpty(m.Highlights))
	if err != nil {
		return fmt.Errorf("highlightsのエンコードに失敗しました: %w", err)
	}

	// general_noteは空文字列ではなくNULLで保存する。
	var generalNote sql.NullString
	if m.GeneralNote != "" {
		generalNote = sql.NullString{String: m.GeneralNote, Valid: true}
	}
	var lastAccessed sql.NullTime
	if m.LastAccessed != nil {
		lastAccessed = sql.NullTime{Time: *m.LastAccessed, Valid: true}
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO moments (
		    id, song_id, song_title, song_artist, song_album, song_artwork,
		    song_duration, song_platforms, general_note, highlights,
		    visibility, views, created_at, last_updated, last_accessed
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.ID, m.SongID, m.SongTitle, m.SongArtist, m.SongAlbum, m.SongArtwork,
		m.SongDuration, platformsJSON, generalNote, highlightsJSON,
		m.Visibility, m.Views, m.CreatedAt, m.LastUpdated, lastAccessed,
	)
	if err != nil {
		return fmt.Errorf("モーメントの作成に失敗しました: %w", err)
	}

	return nil
}

// IncrementViews は閲覧数を原子的に1加算し、最終アクセス時刻を更新する。
// 単一のUPDATE文で加算するため、並行読み取りでも加算が失われることはない。
func (r *PostgresMomentRepo) IncrementViews(ctx context.Context, id string, accessedAt time.Time) (int64, bool, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE moments SET views = views + 1, last_accessed = $2
		 WHERE id = $1
		 RETURNING views`,
		id, accessedAt,
	).Scan(&views)

	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
	}
	return views, true, nil
}

// List はモーメント一覧を作成日時の降順で返す。
func (r *PostgresMomentRepo) List(ctx context.Context, offset, limit int) ([]*model.Moment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, song_id, song_title, song_artist, song_album, song_artwork,
		        song_duration, song_platforms, general_note, highlights,
		        visibility, views, created_at, last_updated, last_accessed
		 FROM moments
		 ORDER BY created_at DESC
		 OFFSET $1 LIMIT $2`,
		offset, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("モーメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var moments []*model.Moment
	for rows.Next() {
		m := &model.Moment{}
		var generalNote sql.NullString
		var lastAccessed sql.NullTime
		var platformsJSON, highlightsJSON []byte

		if err := rows.Scan(
			&m.ID, &m.SongID, &m.SongTitle, &m.SongArtist, &m.SongAlbum, &m.SongArtwork,
			&m.SongDuration, &platformsJSON, &generalNote, &highlightsJSON,
			&m.Visibility, &m.Views, &m.CreatedAt, &m.LastUpdated, &lastAccessed,
		); err != nil {
			return nil, fmt.Errorf("モーメント行の読み取りに失敗しました: %w", err)
		}

		if generalNote.Valid {
			m.GeneralNote = generalNote.String
		}
		if lastAccessed.Valid {
			t := lastAccessed.Time
			m.LastAccessed = &t
		}
		if err := json.Unmarshal(platformsJSON, &m.SongPlatforms); err != nil {
			return nil, fmt.Errorf("song_platformsのデコードに失敗しました: %w", err)
		}
		if err := json.Unmarshal(highlightsJSON, &m.Highlights); err != nil {
			return nil, fmt.Errorf("highlightsのデコードに失敗しました: %w", err)
		}

		moments = append(moments, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("モーメント一覧の読み取りに失敗しました: %w", err)
	}

	return moments, nil
}

// Count は保存されているモーメントの総数を返す。
func (r *PostgresMomentRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM moments`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("モーメント数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// platformsOrEmpty はnilマップを空マップに正規化する。
// JSONBカラムにNULLではなく{}を格納するため。
func platformsOrEmpty(p map[string]string) map[string]string {
	if p == nil {
		return map[string]string{}
	}
	return p
}

// highlightsOrEmpty はnilスライスを空スライスに正規化する。
func highlightsOrEmpty(h []model.Highlight) []model.Highlight {
	if h == nil {
		return []model.Highlight{}
	}
	return h
}
