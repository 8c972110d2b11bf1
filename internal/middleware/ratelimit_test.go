package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestLimiter(window time.Duration, max int) (*SubmissionLimiter, func(time.Duration)) {
	l := NewSubmissionLimiter(SubmissionLimiterConfig{
		Window:      window,
		MaxRequests: max,
	})
	base := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	current := base
	l.now = func() time.Time { return current }
	advance := func(d time.Duration) { current = current.Add(d) }
	return l, advance
}

func TestSubmissionLimiter_AllowsUpToMax(t *testing.T) {
	l, _ := newTestLimiter(60*time.Second, 30)

	for i := 0; i < 30; i++ {
		if !l.IsAllowed("client-1") {
			t.Fatalf("リクエスト%d回目が拒否された（上限30）", i+1)
		}
	}

	// 31回目は拒否される
	if l.IsAllowed("client-1") {
		t.Error("31回目のリクエストが許可された")
	}
}

func TestSubmissionLimiter_RejectionIsIdempotent(t *testing.T) {
	l, _ := newTestLimiter(60*time.Second, 2)

	l.IsAllowed("client-1")
	l.IsAllowed("client-1")

	// 上限到達後の拒否はカウンタを増やさない。
	// 何度拒否されてもウィンドウ満了後は再び許可される。
	for i := 0; i < 10; i++ {
		if l.IsAllowed("client-1") {
			t.Fatal("上限到達後に許可された")
		}
	}
}

func TestSubmissionLimiter_WindowReset(t *testing.T) {
	l, advance := newTestLimiter(60*time.Second, 2)

	l.IsAllowed("client-1")
	l.IsAllowed("client-1")
	if l.IsAllowed("client-1") {
		t.Fatal("上限到達後に許可された")
	}

	// ウィンドウ満了後はカウンタ1で新しいウィンドウが始まる
	advance(61 * time.Second)
	if !l.IsAllowed("client-1") {
		t.Fatal("ウィンドウ満了後に拒否された")
	}
	if !l.IsAllowed("client-1") {
		t.Fatal("新ウィンドウの2回目が拒否された")
	}
	if l.IsAllowed("client-1") {
		t.Error("新ウィンドウの3回目が許可された")
	}
}

func TestSubmissionLimiter_ClientsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(60*time.Second, 1)

	if !l.IsAllowed("client-1") {
		t.Fatal("client-1の1回目が拒否された")
	}
	if l.IsAllowed("client-1") {
		t.Fatal("client-1の2回目が許可された")
	}
	// 別クライアントには影響しない
	if !l.IsAllowed("client-2") {
		t.Error("client-2の1回目が拒否された")
	}
}

func TestSubmissionLimiter_Cleanup(t *testing.T) {
	l, advance := newTestLimiter(60*time.Second, 30)

	l.IsAllowed("client-1")
	l.IsAllowed("client-2")
	advance(30 * time.Second)
	l.IsAllowed("client-3")

	// client-1とclient-2のウィンドウだけが満了している
	advance(45 * time.Second)
	removed := l.Cleanup()

	if removed != 2 {
		t.Errorf("Cleanup() = %d, want 2", removed)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want 1", l.Len())
	}
}

func TestSubmissionLimiter_Middleware429(t *testing.T) {
	l, _ := newTestLimiter(60*time.Second, 1)
	mw := l.Middleware(nil)

	handlerCalls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalls++
		w.WriteHeader(http.StatusCreated)
	}))

	// 1回目は通る
	req := httptest.NewRequest(http.MethodPost, "/api/moments", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusCreated {
		t.Fatalf("1回目: status = %d, want 201", w.Result().StatusCode)
	}

	// 2回目は429でハンドラーに到達しない
	req = httptest.NewRequest(http.MethodPost, "/api/moments", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("2回目: status = %d, want 429", resp.StatusCode)
	}
	if handlerCalls != 1 {
		t.Errorf("handlerCalls = %d, want 1（拒否時はハンドラーに到達しない）", handlerCalls)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-Afterヘッダーが無い")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if body.Code != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want RATE_LIMIT_EXCEEDED", body.Code)
	}
	if body.Timestamp == "" {
		t.Error("timestampが無い")
	}
}

// countingRecorder はレート制限メトリクスの記録回数を数える。
type countingRecorder struct {
	limited map[string]int
}

func (r *countingRecorder) RecordRateLimited(limiter string) {
	if r.limited == nil {
		r.limited = make(map[string]int)
	}
	r.limited[limiter]++
}

func TestSubmissionLimiter_MiddlewareRecordsMetrics(t *testing.T) {
	l, _ := newTestLimiter(60*time.Second, 1)
	rec := &countingRecorder{}
	handler := l.Middleware(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/moments", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	if rec.limited["submission"] != 1 {
		t.Errorf("limited[submission] = %d, want 1", rec.limited["submission"])
	}
}
