// Package cache はプロセス内TTLキャッシュを提供する。
// カバー解決・詳細レスポンス・レコメンドプールで共有する読み取り優先のキャッシュ。
package cache

import (
	"sync"
	"time"
)

// entry は値と有効期限の組。
type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache はキーごとのTTL付きインメモリキャッシュ。
// 全操作はミューテックスで保護され、複数ゴルーチンから安全に使える。
type Cache[V any] struct {
	mu         sync.RWMutex
	entries    map[string]entry[V]
	defaultTTL time.Duration
	now        func() time.Time // テスト用に差し替え可能
}

// New は指定されたデフォルトTTLのCacheを生成する。
func New[V any](defaultTTL time.Duration) *Cache[V] {
	return &Cache[V]{
		entries:    make(map[string]entry[V]),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Get はキーに対応する値を返す。期限切れまたは未登録の場合はfalseを返す。
// 期限切れエントリは読み取り時に削除する。
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// 再確認: 読み取りロック解放後に書き換えられている可能性がある
		if cur, ok := c.entries[key]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set はデフォルトTTLで値を登録する。
func (c *Cache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL は指定TTLで値を登録する。既存のエントリは上書きされる。
func (c *Cache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[V]{
		value:     value,
		expiresAt: c.now().Add(ttl),
	}
}

// Delete はキーのエントリを削除する。未登録のキーは無視する。
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// SetClock はテスト用に現在時刻関数を差し替える。
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}
