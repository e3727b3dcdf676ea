package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/pranav/chatterbox/internal/observability"
	"github.com/rs/zerolog/log"
)

// DefaultTTL matches the original cache lifetime of one day.
const DefaultTTL = 24 * time.Hour

// Config holds store configuration.
type Config struct {
	// SystemPrompt seeds every new thread and never changes for the
	// thread's lifetime.
	SystemPrompt string

	// TTL is measured from the last save. Zero means DefaultTTL.
	TTL time.Duration

	// Now overrides the clock, for tests. Zero value means time.Now.
	Now func() time.Time
}

type entry struct {
	messages  []Message
	expiresAt time.Time
}

// Store is an in-memory TTL cache of thread histories. It is safe for
// concurrent use, but offers no per-thread transactional isolation:
// concurrent load/save for the same thread is last-writer-wins.
type Store struct {
	systemPrompt string
	ttl          time.Duration
	now          func() time.Time

	mu      sync.Mutex
	threads map[string]*entry
}

// New creates a Store.
func New(cfg Config) *Store {
	observability.EnsureRegistered()

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	s := &Store{
		systemPrompt: cfg.SystemPrompt,
		ttl:          ttl,
		now:          now,
		threads:      make(map[string]*entry),
	}

	log.Info().Dur("ttl", ttl).Msg("Session store initialized")

	return s
}

// Load returns a working copy of the thread's history. An unseen or
// expired thread yields a fresh history containing only the system
// message.
func (s *Store) Load(threadID string) []Message {
	start := time.Now()
	defer func() {
		observability.RecordSessionLoad(time.Since(start))
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.threads[threadID]
	if ok && s.now().After(e.expiresAt) {
		delete(s.threads, threadID)
		observability.RecordThreadsExpired(1)
		observability.SetActiveThreads(len(s.threads))
		log.Debug().Str("threadId", threadID).Msg("Thread expired, starting fresh")
		ok = false
	}

	if !ok {
		return []Message{SystemMessage(s.systemPrompt)}
	}

	// Hand out a copy so the caller's working history cannot alias
	// the stored one.
	msgs := make([]Message, len(e.messages))
	copy(msgs, e.messages)

	log.Debug().Str("threadId", threadID).Int("messages", len(msgs)).Msg("Thread loaded")

	return msgs
}

// Save overwrites the thread's history and resets its expiry clock to
// now plus the TTL. The orchestrator only calls this with a completed
// turn, so a sequence must end in an assistant message with content.
func (s *Store) Save(threadID string, msgs []Message) error {
	start := time.Now()
	defer func() {
		observability.RecordSessionSave(time.Since(start))
	}()

	if threadID == "" {
		return fmt.Errorf("thread id cannot be empty")
	}
	if len(msgs) == 0 {
		return fmt.Errorf("cannot save empty history")
	}
	last := msgs[len(msgs)-1]
	if last.Role != RoleAssistant || last.Content == "" {
		return fmt.Errorf("history must end with an assistant message carrying content, got role %q", last.Role)
	}

	stored := make([]Message, len(msgs))
	copy(stored, msgs)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.threads[threadID] = &entry{
		messages:  stored,
		expiresAt: s.now().Add(s.ttl),
	}
	observability.SetActiveThreads(len(s.threads))

	log.Debug().Str("threadId", threadID).Int("messages", len(stored)).Msg("Thread saved")

	return nil
}

// Delete removes a thread regardless of expiry.
func (s *Store) Delete(threadID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.threads, threadID)
	observability.SetActiveThreads(len(s.threads))
}

// Len reports the number of stored threads, expired entries included
// until the next load or sweep touches them.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.threads)
}

// Sweep drops all expired threads and returns how many were removed.
// Expiry is already enforced lazily at load; sweeping merely reclaims
// memory for threads that are never loaded again.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.threads {
		if now.After(e.expiresAt) {
			delete(s.threads, id)
			removed++
		}
	}

	if removed > 0 {
		observability.RecordThreadsExpired(removed)
		observability.SetActiveThreads(len(s.threads))
		log.Info().Int("removed", removed).Msg("Swept expired threads")
	}

	return removed
}
