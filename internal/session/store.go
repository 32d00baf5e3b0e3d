// Package session keeps the active ledger of each analysis session in memory.
// A session ends when its TTL elapses without activity.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/statement"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

const (
	// DefaultTTL is how long an idle session is kept.
	DefaultTTL = 2 * time.Hour
	// minCleanupInterval bounds how often expired sessions are purged.
	minCleanupInterval = time.Minute
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// IdentityPolicy selects how an uploaded file is recognised as already ingested.
type IdentityPolicy string

const (
	// IdentityFilename treats a file with the same name as unchanged.
	// Two different statements sharing a name are not told apart.
	IdentityFilename IdentityPolicy = "filename"
	// IdentityChecksum compares the SHA-256 of the raw bytes.
	IdentityChecksum IdentityPolicy = "checksum"
)

// ParseIdentityPolicy converts a configuration value into an IdentityPolicy.
// An empty value selects IdentityFilename.
func ParseIdentityPolicy(s string) (IdentityPolicy, error) {
	switch p := IdentityPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return IdentityFilename, nil
	case IdentityFilename, IdentityChecksum:
		return p, nil
	default:
		return "", fmt.Errorf("unknown session identity policy %q", s)
	}
}

// IdentityKey derives the change key of an uploaded file under policy.
func IdentityKey(policy IdentityPolicy, filename string, data []byte) string {
	if policy == IdentityChecksum {
		return "sha256:" + domain.Checksum(data)
	}
	return "filename:" + filename
}

// Source describes the file the active ledger was built from.
type Source struct {
	Filename   string        `json:"filename"`
	Format     domain.Format `json:"format"`
	Checksum   string        `json:"checksum_sha256"`
	Identity   string        `json:"identity"`
	IngestedAt time.Time     `json:"ingested_at"`
}

// Session is an immutable snapshot of one session's state.
// Replace swaps in a new snapshot; readers holding an old one are unaffected.
type Session struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	Source    *Source           `json:"source,omitempty"`
	Ledger    domain.Ledger     `json:"-"`
	Report    *statement.Report `json:"report,omitempty"`
}

// HasLedger reports whether a statement has been ingested into the session.
func (s *Session) HasLedger() bool {
	return s.Source != nil
}

// Store holds sessions in a go-cache instance keyed by session ID.
type Store struct {
	mu       sync.Mutex
	cache    *cache.Cache
	ttl      time.Duration
	identity IdentityPolicy
	log      zerolog.Logger
}

// NewStore creates a session store. A non-positive ttl selects DefaultTTL.
func NewStore(ttl time.Duration, identity IdentityPolicy, log zerolog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if identity == "" {
		identity = IdentityFilename
	}
	cleanup := ttl / 2
	if cleanup < minCleanupInterval {
		cleanup = minCleanupInterval
	}

	s := &Store{
		cache:    cache.New(ttl, cleanup),
		ttl:      ttl,
		identity: identity,
		log:      log,
	}
	s.cache.OnEvicted(func(id string, _ interface{}) {
		s.log.Debug().Str("session_id", id).Msg("session ended")
	})
	return s
}

// Identity returns the store's identity policy.
func (s *Store) Identity() IdentityPolicy {
	return s.identity
}

// Len returns the number of live sessions, including expired ones not yet purged.
func (s *Store) Len() int {
	return s.cache.ItemCount()
}

// NewSource describes an uploaded file, keyed by the store's identity policy.
func (s *Store) NewSource(filename string, format domain.Format, data []byte) Source {
	return Source{
		Filename: filename,
		Format:   format,
		Checksum: domain.Checksum(data),
		Identity: IdentityKey(s.identity, filename, data),
	}
}

// Create starts a new empty session.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(sess.ID, sess, s.ttl)
	return sess
}

// Get returns the current snapshot of a session and extends its lifetime.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	s.cache.Set(id, sess, s.ttl)
	return sess, nil
}

// Delete ends a session immediately.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(id)
}

// NeedsIngest reports whether filename/data differ from the file the session's
// ledger was built from, according to the store's identity policy.
func (s *Store) NeedsIngest(id, filename string, data []byte) (bool, error) {
	sess, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if !sess.HasLedger() {
		return true, nil
	}
	return sess.Source.Identity != IdentityKey(s.identity, filename, data), nil
}

// Replace atomically installs a new ledger in the session. The previous
// snapshot stays valid for readers that already hold it.
func (s *Store) Replace(id string, src Source, ledger domain.Ledger, report *statement.Report) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if src.IngestedAt.IsZero() {
		src.IngestedAt = time.Now().UTC()
	}

	next := &Session{
		ID:        prev.ID,
		CreatedAt: prev.CreatedAt,
		Source:    &src,
		Ledger:    ledger,
		Report:    report,
	}
	s.cache.Set(id, next, s.ttl)

	s.log.Info().
		Str("session_id", id).
		Str("filename", src.Filename).
		Int("transactions", ledger.Len()).
		Msg("session ledger replaced")
	return next, nil
}

func (s *Store) lookup(id string) (*Session, error) {
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	sess, ok := v.(*Session)
	if !ok {
		return nil, fmt.Errorf("session %s: unexpected cache entry %T", id, v)
	}
	return sess, nil
}
