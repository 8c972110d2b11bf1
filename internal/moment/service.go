package moment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/songdash/songdash/internal/cache"
	"github.com/songdash/songdash/internal/model"
	"github.com/songdash/songdash/internal/repository"
)

// maxIDAttempts はID衝突時の再生成の上限回数。
// 62^12の空間で衝突が連続する確率は無視できるが、
// 無検証で受け入れず必ずストアと照合する。
const maxIDAttempts = 5

// defaultListLimit は一覧取得のデフォルト件数。
const defaultListLimit = 20

// maxListLimit は一覧取得の最大件数。指定値に関わらずこの値で頭打ちになる。
const maxListLimit = 50

// NoteCleaner はノート本文のサニタイズのインターフェース。
// security.NoteSanitizerServiceの部分集合として定義する。
type NoteCleaner interface {
	Clean(note string) string
}

// MetricsRecorder はサービス層が記録するメトリクスのインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordMomentCreated()
	RecordMomentViewed()
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// nopMetrics はメトリクス未設定時のno-op実装。
type nopMetrics struct{}

func (nopMetrics) RecordMomentCreated()   {}
func (nopMetrics) RecordMomentViewed()    {}
func (nopMetrics) RecordCacheHit(string)  {}
func (nopMetrics) RecordCacheMiss(string) {}

// Service はモーメントの保存・配信ファサード。
// ID採番、永続化、リードスルーキャッシュ、閲覧数の加算を担当する。
type Service struct {
	repo    repository.MomentRepository
	cache   *cache.TTLCache
	notes   NoteCleaner
	metrics MetricsRecorder
	baseURL string

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorにnilを渡した場合、メトリクスは記録されない。
func NewService(
	repo repository.MomentRepository,
	momentCache *cache.TTLCache,
	notes NoteCleaner,
	baseURL string,
	collector MetricsRecorder,
) *Service {
	if collector == nil {
		collector = nopMetrics{}
	}
	return &Service{
		repo:    repo,
		cache:   momentCache,
		notes:   notes,
		metrics: collector,
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// CreateResult はCreateの戻り値。
type CreateResult struct {
	ID             string
	ShareURL       string
	HasGeneralNote bool
	HighlightCount int
}

// Create は投稿データを検証・正規化して永続化する。
// バリデーション失敗、サニタイズ後に内容が残らない場合は*model.APIErrorを返す。
func (s *Service) Create(ctx context.Context, sub Submission) (*CreateResult, error) {
	if apiErr := Validate(sub); apiErr != nil {
		return nil, apiErr
	}

	// ノート本文はサニタイズ前にプレーンテキスト化する。
	// タグ除去で空になったノートはサニタイザのフィルタで正しく落ちる。
	sub.GeneralNote = s.notes.Clean(sub.GeneralNote)
	for i := range sub.Highlights {
		sub.Highlights[i].Note = s.notes.Clean(sub.Highlights[i].Note)
		sub.Highlights[i].Text = s.notes.Clean(sub.Highlights[i].Text)
	}

	m := Sanitize(sub)

	// 不変条件: 全体ノートかノート付きハイライトの少なくとも一方が必要。
	if !m.HasGeneralNote() && len(m.Highlights) == 0 {
		return nil, model.NewNoContentError()
	}

	id, err := s.uniqueID(ctx)
	if err != nil {
		return nil, err
	}

	m.ID = id
	m.Views = 0
	m.LastUpdated = s.now().UTC()
	m.LastAccessed = nil

	if err := s.repo.Create(ctx, &m); err != nil {
		return nil, fmt.Errorf("モーメントの永続化に失敗しました: %w", err)
	}

	s.metrics.RecordMomentCreated()

	return &CreateResult{
		ID:             id,
		ShareURL:       s.baseURL + "/shared/" + id,
		HasGeneralNote: m.HasGeneralNote(),
		HighlightCount: len(m.Highlights),
	}, nil
}

// Get はIDでモーメントを取得する。
// 取得前にID形式を検証し、不正な形式はストレージに触れずに拒否する。
// 読み取りごとに閲覧数を原子的に1加算し、返却値は加算後の値を反映する。
// リードスルーキャッシュがヒットした場合もカウンタの加算は省略されない。
func (s *Service) Get(ctx context.Context, id string) (*model.Moment, error) {
	if !ValidIDFormat(id) {
		return nil, model.NewInvalidIDFormatError()
	}

	accessedAt := s.now().UTC()
	views, found, err := s.repo.IncrementViews(ctx, id, accessedAt)
	if err != nil {
		return nil, fmt.Errorf("閲覧数の加算に失敗しました: %w", err)
	}
	if !found {
		return nil, model.NewMomentNotFoundError()
	}

	var m *model.Moment
	if cached, ok := s.cache.Get(id); ok {
		s.metrics.RecordCacheHit("moment")
		m = cached.(*model.Moment).Clone()
	} else {
		s.metrics.RecordCacheMiss("moment")
		m, err = s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("モーメントの取得に失敗しました: %w", err)
		}
		if m == nil {
			return nil, model.NewMomentNotFoundError()
		}
	}

	// キャッシュ経由でも今回の加算分を必ず反映してから返す。
	m.Views = views
	m.LastAccessed = &accessedAt

	s.cache.Set(id, m.Clone())
	s.metrics.RecordMomentViewed()

	return m, nil
}

// Pagination は一覧取得のページング情報。
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// ListResult はListの戻り値。
type ListResult struct {
	Moments    []*model.Moment
	Pagination Pagination
}

// List はモーメント一覧を作成日時の降順でページング取得する。
// limitは未指定（0以下）で20、上限50に丸められる。pageは1始まり。
func (s *Service) List(ctx context.Context, page, limit int) (*ListResult, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("モーメント数の取得に失敗しました: %w", err)
	}

	offset := (page - 1) * limit
	moments, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("モーメント一覧の取得に失敗しました: %w", err)
	}

	totalPages := (total + limit - 1) / limit

	return &ListResult{
		Moments: moments,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}, nil
}

// uniqueID は既存IDと衝突しないモーメントIDを生成する。
// 上限回数まで再生成しても衝突が解消しない場合はエラーを返す。
func (s *Service) uniqueID(ctx context.Context) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.Exists(ctx, id)
		if err != nil {
			return "", fmt.Errorf("IDの衝突チェックに失敗しました: %w", err)
		}
		if !exists {
			return id, nil
		}
	}
	return "", fmt.Errorf("モーメントIDの生成が%d回連続で衝突しました", maxIDAttempts)
}
