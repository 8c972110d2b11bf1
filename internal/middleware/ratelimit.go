package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/songdash/songdash/internal/model"
)

// SubmissionLimiterConfig はモーメント投稿レート制限の設定を保持する。
type SubmissionLimiterConfig struct {
	Window      time.Duration // ウィンドウ幅
	MaxRequests int           // ウィンドウあたりの最大リクエスト数
}

// DefaultSubmissionLimiterConfig はデフォルトの投稿レート制限設定を返す。
// 要件: 60秒あたり30投稿/クライアント
func DefaultSubmissionLimiterConfig() SubmissionLimiterConfig {
	return SubmissionLimiterConfig{
		Window:      60 * time.Second,
		MaxRequests: 30,
	}
}

// clientWindow はクライアントごとの現在ウィンドウの状態。
type clientWindow struct {
	count     int
	resetTime time.Time
}

// SubmissionLimiter はクライアントごとの固定ウィンドウ方式の投稿レート制限。
//
// ウィンドウは壁時計のスライドではなく固定間隔でリセットされるため、
// ウィンドウ境界をまたぐバーストは名目レートの最大2倍まで通過しうる。
// 不正利用の抑止が目的であり、課金レベルの精度は意図していない。
type SubmissionLimiter struct {
	mu      sync.Mutex
	config  SubmissionLimiterConfig
	clients map[string]*clientWindow

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// NewSubmissionLimiter は新しいSubmissionLimiterを生成する。
// 期限切れエントリの削除はCleanupを定期タイマーから呼び出して行う。
func NewSubmissionLimiter(config SubmissionLimiterConfig) *SubmissionLimiter {
	return &SubmissionLimiter{
		config:  config,
		clients: make(map[string]*clientWindow),
		now:     time.Now,
	}
}

// IsAllowed はクライアントのリクエストを許可するかを返す。
// 初見のクライアント、またはウィンドウが満了していた場合はカウンタを1に
// リセットして新しいウィンドウを開始し、trueを返す。
// ウィンドウ内では上限到達後はカウンタを増やさずfalseを返し続ける（冪等な拒否）。
func (l *SubmissionLimiter) IsAllowed(clientID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cw, ok := l.clients[clientID]
	if !ok || now.After(cw.resetTime) {
		l.clients[clientID] = &clientWindow{
			count:     1,
			resetTime: now.Add(l.config.Window),
		}
		return true
	}

	if cw.count >= l.config.MaxRequests {
		return false
	}

	cw.count++
	return true
}

// Cleanup はウィンドウが満了した全クライアントエントリを削除し、削除件数を返す。
// メモリ使用量を抑えるため、リクエスト処理とは独立した定期タイマーから
// 呼び出されることを想定している。
func (l *SubmissionLimiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for clientID, cw := range l.clients {
		if now.After(cw.resetTime) {
			delete(l.clients, clientID)
			removed++
		}
	}
	return removed
}

// Len は現在管理されているクライアントエントリ数を返す。
// テストおよびメトリクス用。
func (l *SubmissionLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// retryAfter はクライアントのウィンドウ満了までの秒数を返す。
func (l *SubmissionLimiter) retryAfter(clientID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cw, ok := l.clients[clientID]
	if !ok {
		return 1
	}
	sec := int(math.Ceil(cw.resetTime.Sub(l.now()).Seconds()))
	if sec < 1 {
		sec = 1
	}
	return sec
}

// RateLimitRecorder はレート制限の拒否を記録するインターフェース。
// metrics.Collectorの部分集合として定義する。
type RateLimitRecorder interface {
	RecordRateLimited(limiter string)
}

// Middleware は投稿レート制限のミドルウェアを返す。
// 拒否されたリクエストは429とRATE_LIMIT_EXCEEDEDエンベロープで応答し、
// 後続のハンドラーには到達させない（データは一切永続化されない）。
// recorderにnilを渡した場合、メトリクスは記録されない。
func (l *SubmissionLimiter) Middleware(recorder RateLimitRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ClientIP(r)

			if !l.IsAllowed(clientID) {
				w.Header().Set("Retry-After", strconv.Itoa(l.retryAfter(clientID)))
				WriteErrorResponse(w, model.NewRateLimitExceededError())
				if recorder != nil {
					recorder.RecordRateLimited("submission")
				}
				slog.Warn("rate limit exceeded",
					slog.String("client_id", clientID),
					slog.String("limit_type", "submission"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
