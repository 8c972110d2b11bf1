package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/songdash/songdash/internal/model"
)

func newTestMoment(id string, createdAt time.Time) *model.Moment {
	return &model.Moment{
		ID:         id,
		SongID:     "track-1",
		SongTitle:  "Song",
		SongArtist: "Artist",
		SongPlatforms: map[string]string{
			"spotify": "https://open.spotify.com/track/1",
		},
		Highlights:  []model.Highlight{},
		Visibility:  model.VisibilityPublic,
		CreatedAt:   createdAt,
		LastUpdated: createdAt,
	}
}

func TestMemoryMomentRepo_CreateAndFindByID(t *testing.T) {
	repo := NewMemoryMomentRepo()
	ctx := context.Background()

	m := newTestMoment("abc123def456", time.Now())
	if err := repo.Create(ctx, m); err != nil {
		t.Fatalf("Create失敗: %v", err)
	}

	got, err := repo.FindByID(ctx, "abc123def456")
	if err != nil {
		t.Fatalf("FindByID失敗: %v", err)
	}
	if got == nil {
		t.Fatal("FindByID returned nil")
	}
	if got.ID != "abc123def456" {
		t.Errorf("ID = %q, want abc123def456", got.ID)
	}
}

func TestMemoryMomentRepo_FindByIDNotFound(t *testing.T) {
	repo := NewMemoryMomentRepo()

	got, err := repo.FindByID(context.Background(), "missing12345")
	if err != nil {
		t.Fatalf("FindByID失敗: %v", err)
	}
	if got != nil {
		t.Errorf("got = %v, want nil", got)
	}
}

func TestMemoryMomentRepo_Isolation(t *testing.T) {
	repo := NewMemoryMomentRepo()
	ctx := context.Background()

	m := newTestMoment("abc123def456", time.Now())
	repo.Create(ctx, m)

	// 格納後に呼び出し元が変更してもストアに波及しない
	m.SongPlatforms["spotify"] = "mutated"

	got, _ := repo.FindByID(ctx, "abc123def456")
	if got.SongPlatforms["spotify"] == "mutated" {
		t.Error("Create後の変更がストアに波及した")
	}

	// 取得結果の変更もストアに波及しない
	got.SongTitle = "mutated"
	again, _ := repo.FindByID(ctx, "abc123def456")
	if again.SongTitle == "mutated" {
		t.Error("FindByID結果の変更がストアに波及した")
	}
}

func TestMemoryMomentRepo_Exists(t *testing.T) {
	repo := NewMemoryMomentRepo()
	ctx := context.Background()

	repo.Create(ctx, newTestMoment("abc123def456", time.Now()))

	ok, err := repo.Exists(ctx, "abc123def456")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v, want true, nil", ok, err)
	}
	ok, err = repo.Exists(ctx, "missing12345")
	if err != nil || ok {
		t.Errorf("Exists = %v, %v, want false, nil", ok, err)
	}
}

func TestMemoryMomentRepo_IncrementViews(t *testing.T) {
	repo := NewMemoryMomentRepo()
	ctx := context.Background()

	repo.Create(ctx, newTestMoment("abc123def456", time.Now()))

	accessedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	views, found, err := repo.IncrementViews(ctx, "abc123def456", accessedAt)
	if err != nil {
		t.Fatalf("IncrementViews失敗: %v", err)
	}
	if !found {
		t.Fatal("found = false, want true")
	}
	if views != 1 {
		t.Errorf("views = %d, want 1", views)
	}

	m, _ := repo.FindByID(ctx, "abc123def456")
	if m.LastAccessed == nil || !m.LastAccessed.Equal(accessedAt) {
		t.Errorf("LastAccessed = %v, want %v", m.LastAccessed, accessedAt)
	}
}

func TestMemoryMomentRepo_IncrementViewsNotFound(t *testing.T) {
	repo := NewMemoryMomentRepo()

	_, found, err := repo.IncrementViews(context.Background(), "missing12345", time.Now())
	if err != nil {
		t.Fatalf("IncrementViews失敗: %v", err)
	}
	if found {
		t.Error("found = true, want false")
	}
}

func TestMemoryMomentRepo_IncrementViewsConcurrent(t *testing.T) {
	repo := NewMemoryMomentRepo()
	ctx := context.Background()

	repo.Create(ctx, newTestMoment("abc123def456", time.Now()))

	// 並行加算でカウントが失われないこと
	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.IncrementViews(ctx, "abc123def456", time.Now())
		}()
	}
	wg.Wait()

	m, _ := repo.FindByID(ctx, "abc123def456")
	if m.Views != goroutines {
		t.Errorf("views = %d, want %d", m.Views, goroutines)
	}
}

func TestMemoryMomentRepo_ListOrderAndPaging(t *testing.T) {
	repo := NewMemoryMomentRepo()
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("moment%06d", i)
		repo.Create(ctx, newTestMoment(id, base.Add(time.Duration(i)*time.Hour)))
	}

	// 作成日時の降順
	page, err := repo.List(ctx, 0, 3)
	if err != nil {
		t.Fatalf("List失敗: %v", err)
	}
	if len(page) != 3 {
		t.Fatalf("len = %d, want 3", len(page))
	}
	if page[0].ID != "moment000004" || page[1].ID != "moment000003" {
		t.Errorf("降順になっていない: %s, %s", page[0].ID, page[1].ID)
	}

	// 2ページ目
	page, _ = repo.List(ctx, 3, 3)
	if len(page) != 2 {
		t.Errorf("2ページ目のlen = %d, want 2", len(page))
	}

	// 範囲外オフセット
	page, _ = repo.List(ctx, 10, 3)
	if len(page) != 0 {
		t.Errorf("範囲外オフセットのlen = %d, want 0", len(page))
	}
	if page == nil {
		t.Error("空スライスではなくnilが返った")
	}
}

func TestMemoryMomentRepo_Count(t *testing.T) {
	repo := NewMemoryMomentRepo()
	ctx := context.Background()

	count, err := repo.Count(ctx)
	if err != nil || count != 0 {
		t.Errorf("Count = %d, %v, want 0, nil", count, err)
	}

	repo.Create(ctx, newTestMoment("abc123def456", time.Now()))
	repo.Create(ctx, newTestMoment("xyz987uvw654", time.Now()))

	count, _ = repo.Count(ctx)
	if count != 2 {
		t.Errorf("Count = %d, want 2", count)
	}
}
