package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/medchain/medchain/internal/apperr"
)

var (
	keySession        = []byte("session")
	keyOnboardingSeen = []byte("onboarding_seen")
)

// LevelStore keeps the session in a LevelDB database on local disk.
type LevelStore struct {
	db  *leveldb.DB
	now func() time.Time
}

// OpenLevelStore opens (or creates) the database under dir.
func OpenLevelStore(dir string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", dir, err)
	}
	return &LevelStore{db: db, now: time.Now}, nil
}

// NewMemLevelStore backs the store with in-memory LevelDB storage.
func NewMemLevelStore() (*LevelStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory session store: %w", err)
	}
	return &LevelStore{db: db, now: time.Now}, nil
}

func (s *LevelStore) Close() error { return s.db.Close() }

func (s *LevelStore) Load(_ context.Context) (*Session, error) {
	raw, err := s.db.Get(keySession, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, apperr.ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Token == "" && sess.HospitalID == "" {
		return nil, apperr.ErrNoSession
	}
	if sess.Expired(s.now()) {
		return nil, apperr.ErrNoSession
	}
	return &sess, nil
}

func (s *LevelStore) Save(_ context.Context, sess *Session) error {
	if sess == nil || (sess.Token == "" && sess.HospitalID == "") {
		return apperr.NewValidationError("token")
	}
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.db.Put(keySession, raw, nil); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

func (s *LevelStore) Clear(_ context.Context) error {
	if err := s.db.Delete(keySession, nil); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *LevelStore) OnboardingSeen(_ context.Context) (bool, error) {
	raw, err := s.db.Get(keyOnboardingSeen, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read onboarding flag: %w", err)
	}
	return string(raw) == "true", nil
}

func (s *LevelStore) MarkOnboardingSeen(_ context.Context) error {
	if err := s.db.Put(keyOnboardingSeen, []byte("true"), nil); err != nil {
		return fmt.Errorf("write onboarding flag: %w", err)
	}
	return nil
}
