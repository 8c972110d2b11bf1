package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/songdash/songdash/internal/model"
)

// MemoryMomentRepo はインメモリのモーメントリポジトリ。
// DATABASE_URLが未設定の場合の開発用ストアおよびテストで使用する。
// 格納・取得時にディープコピーを行い、呼び出し元との共有状態を持たない。
type MemoryMomentRepo struct {
	mu      sync.RWMutex
	moments map[string]*model.Moment
}

// NewMemoryMomentRepo はMemoryMomentRepoを生成する。
func NewMemoryMomentRepo() *MemoryMomentRepo {
	return &MemoryMomentRepo{
		moments: make(map[string]*model.Moment),
	}
}

// FindByID は指定IDのモーメントを取得する。見つからない場合はnilを返す。
func (r *MemoryMomentRepo) FindByID(ctx context.Context, id string) (*model.Moment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.moments[id]
	if !ok {
		return nil, nil
	}
	return m.Clone(), nil
}

// Exists は指定IDのモーメントが存在するかを返す。
func (r *MemoryMomentRepo) Exists(ctx context.Context, id string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.moments[id]
	return ok, nil
}

// Create はモーメントを作成する。
func (r *MemoryMomentRepo) Create(ctx context.Context, m *model.Moment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moments[m.ID] = m.Clone()
	return nil
}

// IncrementViews は閲覧数を原子的に1加算し、最終アクセス時刻を更新する。
// ロック下で加算するため、並行読み取りでも加算が失われることはない。
func (r *MemoryMomentRepo) IncrementViews(ctx context.Context, id string, accessedAt time.Time) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.moments[id]
	if !ok {
		return 0, false, nil
	}
	m.Views++
	t := accessedAt
	m.LastAccessed = &t
	return m.Views, true, nil
}

// List はモーメント一覧を作成日時の降順で返す。
func (r *MemoryMomentRepo) List(ctx context.Context, offset, limit int) ([]*model.Moment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*model.Moment, 0, len(r.moments))
	for _, m := range r.moments {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []*model.Moment{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}

	page := make([]*model.Moment, 0, end-offset)
	for _, m := range all[offset:end] {
		page = append(page, m.Clone())
	}
	return page, nil
}

// Count は保存されているモーメントの総数を返す。
func (r *MemoryMomentRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.moments), nil
}
