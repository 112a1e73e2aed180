package server

import (
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/chaos-io/img2reveal/reveal"
)

// Session 一次上传对应一个会话：原图、去背景结果和一次 reveal 动画
type Session struct {
	ID         string
	Original   *image.NRGBA
	Controller *reveal.Controller
	CreatedAt  time.Time

	mu     sync.Mutex
	result *image.NRGBA
}

func (s *Session) SetResult(img *image.NRGBA) {
	s.mu.Lock()
	s.result = img
	s.mu.Unlock()
}

func (s *Session) GetResult() *image.NRGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	opts     reveal.Options
}

func NewSessionStore(ttl time.Duration, opts reveal.Options) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		opts:     opts,
	}
}

func (s *SessionStore) Create(original *image.NRGBA) *Session {
	sess := &Session{
		ID:         ksuid.New().String(),
		Original:   original,
		Controller: reveal.NewController(s.opts),
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

func (s *SessionStore) Get(id string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Delete 删除会话并取消进行中的动画，可重复调用
func (s *SessionStore) Delete(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.Controller.Reset()
	}
	return ok
}

// Sweep 清理过期会话，由 cron 定时触发
func (s *SessionStore) Sweep() {
	cutoff := time.Now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.CreatedAt.Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Controller.Reset()
	}
	if len(expired) > 0 {
		slog.Info("swept expired sessions", "count", len(expired))
	}
}

func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
