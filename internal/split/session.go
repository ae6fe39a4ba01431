package split

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SessionStore provides a durable, client-local session identifier: created
// once, then reused for every subsequent call.
type SessionStore interface {
	GetOrCreate() (string, error)
}

// NewSessionID generates a fresh session identifier. Callers without any
// SessionStore can use this directly, at the cost of a new identity per
// call.
func NewSessionID() string {
	return fmt.Sprintf("session-%d-%s", time.Now().UnixMilli(), randomBase36(9))
}

func randomBase36(n int) string {
	s := strconv.FormatInt(rand.Int63(), 36)
	for len(s) < n {
		s = "0" + s
	}
	return s[:n]
}

// FileSessionStore persists the session identifier in a small file, the
// local-storage analog for non-browser clients.
type FileSessionStore struct {
	path string

	mu sync.Mutex
	id string
}

func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

func (s *FileSessionStore) GetOrCreate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id != "" {
		return s.id, nil
	}

	data, err := os.ReadFile(s.path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			s.id = id
			return s.id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read session file: %w", err)
	}

	id := NewSessionID()
	if err := os.WriteFile(s.path, []byte(id+"\n"), 0600); err != nil {
		return "", fmt.Errorf("failed to write session file: %w", err)
	}

	s.id = id
	return s.id, nil
}

// MemorySessionStore keeps the identifier in memory only. It preserves the
// create-once contract for the process lifetime but does not survive
// restarts.
type MemorySessionStore struct {
	mu sync.Mutex
	id string
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (s *MemorySessionStore) GetOrCreate() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.id == "" {
		s.id = NewSessionID()
	}
	return s.id, nil
}
