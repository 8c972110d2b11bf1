// Package sweep はインメモリ状態（レート制限ウィンドウ、TTLキャッシュ）の
// 定期掃除ジョブを提供する。リクエスト処理からは独立したバックグラウンドの
// タイマーで実行され、期限切れエントリによるメモリ増加を抑える。
package sweep

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Target は掃除対象の1つを表す。
// Sweepは削除したエントリ数を返す。
type Target struct {
	Name     string
	Interval time.Duration
	Sweep    func() int
}

// Job は複数のターゲットを各自の周期で掃除するジョブ。
// ターゲットごとに独立したゴルーチンとタイマーを持つ。
type Job struct {
	targets []Target
	logger  *slog.Logger
}

// NewJob は新しいJobを生成する。
func NewJob(logger *slog.Logger, targets ...Target) *Job {
	return &Job{
		targets: targets,
		logger:  logger,
	}
}

// Run は全ターゲットの掃除ループを開始し、コンテキストの
// キャンセルまでブロックする。
func (j *Job) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, target := range j.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			j.runTarget(ctx, t)
		}(target)
	}

	wg.Wait()
}

// runTarget は1つのターゲットの掃除ループを実行する。
func (j *Job) runTarget(ctx context.Context, t Target) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	j.logger.Info("sweep loop started",
		slog.String("target", t.Name),
		slog.Duration("interval", t.Interval),
	)

	for {
		select {
		case <-ticker.C:
			removed := t.Sweep()
			if removed > 0 {
				j.logger.Info("sweep completed",
					slog.String("target", t.Name),
					slog.Int("removed", removed),
				)
			}
		case <-ctx.Done():
			j.logger.Info("sweep loop stopped",
				slog.String("target", t.Name),
			)
			return
		}
	}
}
