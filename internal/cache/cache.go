// Package cache はプロセスローカルのTTLキャッシュを提供する。
// モーメント読み取りのリードスルーキャッシュと検索結果キャッシュの両方で使用される。
// 期限切れエントリは読み取り時には無視され、定期スイープで削除される。
package cache

import (
	"sync"
	"time"
)

// entry はキャッシュの1エントリ。挿入時刻をTTL判定に使用する。
type entry struct {
	data      any
	timestamp time.Time
}

// TTLCache はTTL付きのスレッドセーフなインメモリキャッシュ。
type TTLCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry

	// now はテストで時刻を差し替えるためのフック。
	now func() time.Time
}

// New は指定TTLのTTLCacheを生成する。
func New(ttl time.Duration) *TTLCache {
	return &TTLCache{
		ttl:     ttl,
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

// Get はキーに対応する値を返す。
// エントリが存在しない、またはTTLを超過している場合はfalseを返す。
// 期限切れエントリの削除はSweepに委ねる（読み取りパスでは削除しない）。
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.timestamp) > c.ttl {
		return nil, false
	}
	return e.data, true
}

// Set はキーに値を格納する。既存エントリは挿入時刻ごと上書きされる。
func (c *TTLCache) Set(key string, data any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{data: data, timestamp: c.now()}
}

// Delete はキーのエントリを削除する。
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Sweep はTTLを超過した全エントリを削除し、削除件数を返す。
// リクエスト処理とは独立した定期タイマーから呼び出されることを想定している。
func (c *TTLCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if now.Sub(e.timestamp) > c.ttl {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Len は現在保持しているエントリ数を返す（期限切れ含む）。
// テストおよびメトリクス用。
func (c *TTLCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
