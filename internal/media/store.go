package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	. "github.com/roelfdiedericks/wabot/internal/logging"
)

// DefaultTTL is how long temp files live before CleanOld removes them
const DefaultTTL = 10 * time.Minute

// TempStore is a scratch directory for conversion inputs and outputs.
// Files get random names; CleanOld removes anything past the TTL. Paths
// handed out by NewPath or Save stay in use until Release, and no cleanup
// touches them before that.
type TempStore struct {
	dir    string
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex
	active map[string]struct{}
}

// NewTempStore creates dir if needed.
func NewTempStore(dir string, ttl time.Duration) (*TempStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create temp media directory: %w", err)
	}
	L_debug("media: temp store ready", "dir", dir, "ttl", ttl.String())
	return &TempStore{dir: dir, ttl: ttl, now: time.Now, active: make(map[string]struct{})}, nil
}

// Dir returns the directory.
func (s *TempStore) Dir() string {
	return s.dir
}

// NewPath reserves an unused path with the given extension. Nothing is created.
func (s *TempStore) NewPath(ext string) string {
	path := filepath.Join(s.dir, uuid.New().String()[:12]+ext)
	s.mu.Lock()
	s.active[path] = struct{}{}
	s.mu.Unlock()
	return path
}

// Save writes data to a new reserved file and returns its path.
func (s *TempStore) Save(data []byte, ext string) (string, error) {
	path := s.NewPath(ext)
	if err := os.WriteFile(path, data, 0600); err != nil {
		s.Release(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	L_trace("media: saved temp file", "path", path, "size", len(data))
	return path, nil
}

// Release deletes reserved paths once a conversion is done with them.
func (s *TempStore) Release(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.active, p)
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			L_trace("media: failed to remove temp file", "path", p, "error", err)
		}
	}
}

// InUse returns how many reserved paths have not been released.
func (s *TempStore) InUse() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// CleanOld removes files older than the TTL and returns how many went.
func (s *TempStore) CleanOld() (int, error) {
	return s.remove(s.now().Add(-s.ttl))
}

// Clear removes every file not in use, regardless of age.
func (s *TempStore) Clear() (int, error) {
	return s.remove(time.Time{})
}

// remove deletes files modified before cutoff; a zero cutoff matches all.
func (s *TempStore) remove(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	err := filepath.Walk(s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if _, busy := s.active[path]; busy {
			return nil
		}
		if !cutoff.IsZero() && !info.ModTime().Before(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			L_trace("media: failed to remove temp file", "path", path, "error", err)
			return nil
		}
		removed++
		return nil
	})
	if removed > 0 {
		L_debug("media: cleanup completed", "removed", removed)
	}
	return removed, err
}
