// Package session keeps per-client chat histories in memory.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/jbweber/vmchat/internal/llm"
)

// DefaultLimit is the history length used when none is configured.
const DefaultLimit = 10

// Session is one client's conversation.
type Session struct {
	ID       string        `json:"id" yaml:"id"`
	Messages []llm.Message `json:"messages" yaml:"messages"`
	Created  time.Time     `json:"created" yaml:"created"`
	Updated  time.Time     `json:"updated" yaml:"updated"`
}

// Store holds sessions keyed by ID. Every session starts with the system
// prompt, which survives trimming.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	prompt   string
	limit    int
}

// NewStore creates a Store. A limit below 2 uses DefaultLimit.
func NewStore(systemPrompt string, limit int) *Store {
	if limit < 2 {
		limit = DefaultLimit
	}
	return &Store{
		sessions: make(map[string]*Session),
		prompt:   systemPrompt,
		limit:    limit,
	}
}

// Append adds messages to the session, creating it if needed, and returns
// a copy of the trimmed history.
func (s *Store) Append(id string, msgs ...llm.Message) []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess, ok := s.sessions[id]
	if !ok {
		sess = &Session{ID: id, Created: now}
		if s.prompt != "" {
			sess.Messages = append(sess.Messages, llm.Message{Role: llm.RoleSystem, Content: s.prompt})
		}
		s.sessions[id] = sess
	}

	sess.Messages = trim(append(sess.Messages, msgs...), s.limit)
	sess.Updated = now
	return slices.Clone(sess.Messages)
}

// History returns a copy of the session's messages, or nil when the
// session does not exist.
func (s *Store) History(id string) []llm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil
	}
	return slices.Clone(sess.Messages)
}

// Reset forgets the session.
func (s *Store) Reset(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// IDs returns the known session IDs, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// trim keeps at most limit messages: a leading system message and the
// most recent others.
func trim(msgs []llm.Message, limit int) []llm.Message {
	if len(msgs) <= limit {
		return msgs
	}
	if msgs[0].Role != llm.RoleSystem {
		return slices.Clone(msgs[len(msgs)-limit:])
	}
	out := make([]llm.Message, 0, limit)
	out = append(out, msgs[0])
	return append(out, msgs[len(msgs)-(limit-1):]...)
}
