package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chefos/internal/infrastructure/metrics"
	"chefos/internal/pkg/common"

	"go.uber.org/zap"
)

// Store 記憶體中的會話表，閒置超過 TTL 的會話會被清除
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewStore 創建會話儲存
func NewStore(ttl time.Duration, m *metrics.Metrics) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		metrics:  m,
		now:      time.Now,
	}
}

// Create 建立新會話
func (s *Store) Create() *Session {
	sess := New(common.GenerateUUID())
	sess.lastAccess = s.now()

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	s.metrics.SetActiveSessions(n)
	return sess
}

// Get 取得會話並更新最後存取時間
func (s *Store) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, common.WrapError(common.ErrSessionNotFound, fmt.Errorf("session %q", id))
	}
	sess.touch(s.now())
	return sess, nil
}

// Delete 刪除會話
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return common.WrapError(common.ErrSessionNotFound, fmt.Errorf("session %q", id))
	}
	s.metrics.SetActiveSessions(n)
	return nil
}

// Len 目前會話數
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Cleanup 清除閒置過久的會話，回傳清除數量
func (s *Store) Cleanup() int {
	now := s.now()

	s.mu.Lock()
	count := 0
	for id, sess := range s.sessions {
		if sess.idleSince(now) > s.ttl {
			delete(s.sessions, id)
			count++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	if count > 0 {
		common.LogDebug("清除閒置會話", zap.Int("count", count), zap.Int("remaining", n))
	}
	s.metrics.SetActiveSessions(n)
	return count
}

// StartCleanup 定期清除閒置會話，直到 ctx 結束
func (s *Store) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
