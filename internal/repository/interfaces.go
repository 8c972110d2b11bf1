// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/songdash/songdash/internal/model"
)

// MomentRepository はモーメントデータの永続化インターフェース。
// モーメントは作成後、閲覧数とアクセス時刻の更新以外では変更されない。
// 削除は管理オペレーションの領分であり、このインターフェースには含めない。
type MomentRepository interface {
	// FindByID は指定IDのモーメントを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Moment, error)

	// Exists は指定IDのモーメントが存在するかを返す。
	// ID生成時の衝突チェックに使用する。
	Exists(ctx context.Context, id string) (bool, error)

	// Create はモーメントを作成する。
	Create(ctx context.Context, moment *model.Moment) error

	// IncrementViews は閲覧数を原子的に1加算し、最終アクセス時刻を更新する。
	// 加算後の閲覧数を返す。指定IDが存在しない場合はfoundがfalseになる。
	// 同一モーメントへの並行読み取りでも加算が失われないことを保証する。
	IncrementViews(ctx context.Context, id string, accessedAt time.Time) (views int64, found bool, err error)

	// List はモーメント一覧を作成日時の降順で返す。
	List(ctx context.Context, offset, limit int) ([]*model.Moment, error)

	// Count は保存されているモーメントの総数を返す。
	Count(ctx context.Context) (int, error)
}
