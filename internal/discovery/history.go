// Package discovery はディスカバリーフィードのサンプラーと閲覧履歴を提供する。
package discovery

import (
	"sync"
	"time"
)

// ViewHistoryStore は直近で表示したゲームIDの有界FIFOセット。
// 重複IDを持たず、挿入順が新しさを表す。上限を超えると最古のIDから追い出す。
// セット全体にTTLがあり、期限切れで空にリセットされる。
//
// 個々の操作はミューテックスで保護されるが、サンプラーの
// 読み取り→計算→書き込みの全体は意図的に直列化していない。
// 並行する2つのサンプリングが同じ更新前の履歴を読むことがあるが、
// 履歴はベストエフォートの重複抑制であり、正しさの要件ではない。
type ViewHistoryStore struct {
	mu        sync.Mutex
	ids       []int64
	member    map[int64]struct{}
	limit     int
	ttl       time.Duration
	expiresAt time.Time
	now       func() time.Time // テスト用に差し替え可能
}

// NewViewHistoryStore は上限とTTLを指定してViewHistoryStoreを生成する。
func NewViewHistoryStore(limit int, ttl time.Duration) *ViewHistoryStore {
	return &ViewHistoryStore{
		member: make(map[int64]struct{}),
		limit:  limit,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Snapshot は現在の履歴IDのコピーを新しい順で返す。
// セットが期限切れの場合は空にリセットしてから返す。
func (s *ViewHistoryStore) Snapshot() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Add はIDを先頭に挿入する。既存のIDは先頭に移動し、重複は作らない。
// 挿入後に上限を超えた分は末尾（最古）から切り捨てる。
// 書き込みのたびにセット全体のTTLを更新する。
func (s *ViewHistoryStore) Add(ids []int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	merged := make([]int64, 0, len(ids)+len(s.ids))
	member := make(map[int64]struct{}, len(ids)+len(s.ids))
	for _, id := range ids {
		if _, ok := member[id]; !ok {
			member[id] = struct{}{}
			merged = append(merged, id)
		}
	}
	for _, id := range s.ids {
		if _, ok := member[id]; !ok {
			member[id] = struct{}{}
			merged = append(merged, id)
		}
	}

	if len(merged) > s.limit {
		for _, id := range merged[s.limit:] {
			delete(member, id)
		}
		merged = merged[:s.limit]
	}

	s.ids = merged
	s.member = member
	s.expiresAt = s.now().Add(s.ttl)
}

// Reset は履歴を空にする。カタログを一巡し切った際に呼ばれる。
func (s *ViewHistoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = nil
	s.member = make(map[int64]struct{})
	s.expiresAt = time.Time{}
}

// Contains はIDが履歴に含まれるかどうかを返す。
func (s *ViewHistoryStore) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	_, ok := s.member[id]
	return ok
}

// Len は現在の履歴サイズを返す。
func (s *ViewHistoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	return len(s.ids)
}

// SetClock はテスト用に現在時刻関数を差し替える。
func (s *ViewHistoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// expireLocked はTTL切れの場合に履歴を空にする。ロック保持中に呼ぶこと。
func (s *ViewHistoryStore) expireLocked() {
	if !s.expiresAt.IsZero() && s.now().After(s.expiresAt) {
		s.ids = nil
		s.member = make(map[int64]struct{})
		s.expiresAt = time.Time{}
	}
}
