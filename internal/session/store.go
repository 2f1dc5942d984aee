package session

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"

	"github.com/M4GNV5/iso15118/internal/xerr"
)

// Store is the in-memory, authoritative session map (spec §4.9), with an
// optional badger-backed durable mirror (grounded on the teacher's
// db_utils.go View/Update closure idiom) and an optional Redis advisory
// mirror. The in-memory map is never read through the mirrors; they exist
// for restart survival and external observability only.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	durable *badger.DB
	mirror  *Mirror
	log     *logrus.Entry
}

// NewStore opens durablePath as a badger database if non-empty, and wires
// mirror if non-nil. Either may be omitted; the in-memory store alone is
// always sufficient for correctness.
func NewStore(durablePath string, mirror *Mirror, log *logrus.Entry) (*Store, error) {
	st := &Store{
		sessions: make(map[string]*Session),
		mirror:   mirror,
		log:      log,
	}
	if durablePath != "" {
		db, err := badger.Open(badger.DefaultOptions(durablePath))
		if err != nil {
			return nil, xerr.New(xerr.Config, fmt.Sprintf("opening session durable store: %v", err))
		}
		st.durable = db
	}
	return st, nil
}

func key(id [8]byte) string { return hex.EncodeToString(id[:]) }

// Put inserts or replaces a session and write-throughs to both mirrors.
func (s *Store) Put(sess *Session) error {
	s.mu.Lock()
	s.sessions[key(sess.ID)] = sess
	s.mu.Unlock()

	s.writeDurable(sess)
	s.writeMirror(sess)
	return nil
}

// Get returns the in-memory record for id. Callers outside the owning
// state-machine goroutine (diagnostics, the mirror) must treat the result
// as a read-only snapshot.
func (s *Store) Get(id [8]byte) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[key(id)]
	return sess, ok
}

// Delete removes id from the in-memory map and both mirrors. Called once
// a session reaches Terminated (spec §3: "destroyed on graceful
// termination or fatal error").
func (s *Store) Delete(id [8]byte) {
	s.mu.Lock()
	delete(s.sessions, key(id))
	s.mu.Unlock()

	if s.durable != nil {
		if err := s.durable.Update(func(txn *badger.Txn) error {
			err := txn.Delete(id[:])
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return err
		}); err != nil && s.log != nil {
			s.log.WithError(err).Warn("session: durable delete failed")
		}
	}
	if s.mirror != nil {
		s.mirror.Delete(id)
	}
}

// List returns a snapshot of every in-memory session, for the operator
// diagnostics table (cmd/start-secc's /sessions endpoint).
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

func (s *Store) writeDurable(sess *Session) {
	if s.durable == nil {
		return
	}
	data, err := json.Marshal(sess)
	if err != nil {
		if s.log != nil {
			s.log.WithError(err).Warn("session: durable marshal failed")
		}
		return
	}
	if err := s.durable.Update(func(txn *badger.Txn) error {
		return txn.Set(sess.ID[:], data)
	}); err != nil && s.log != nil {
		s.log.WithError(err).Warn("session: durable write failed")
	}
}

func (s *Store) writeMirror(sess *Session) {
	if s.mirror == nil {
		return
	}
	s.mirror.Put(sess)
}

// Close releases the durable store's file handles.
func (s *Store) Close() error {
	if s.durable == nil {
		return nil
	}
	return s.durable.Close()
}
