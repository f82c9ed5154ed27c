package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/tanya/internal/models"
)

// ErrSessionNotFound is returned when no session file exists for an id.
var ErrSessionNotFound = errors.New("session not found")

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

const sessionExt = ".json"

// Session is one conversation persisted between CLI invocations.
type Session struct {
	ID        string            `json:"session_id"`
	Topic     string            `json:"topic"`
	Messages  models.Transcript `json:"messages"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// SessionStore keeps sessions as one JSON file each under a directory.
type SessionStore struct {
	dir string
}

// NewSessionStore returns a store rooted at dir, creating it if needed.
func NewSessionStore(dir string) (*SessionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &SessionStore{dir: dir}, nil
}

// New returns an empty session with a fresh id. It is not written until Save.
func (s *SessionStore) New(topic string) *Session {
	return &Session{ID: uuid.NewString(), Topic: topic, Messages: models.Transcript{}}
}

// Load reads the session with the given id.
func (s *SessionStore) Load(id string) (*Session, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", id, err)
	}
	if sess.ID == "" {
		sess.ID = id
	}
	if sess.Messages == nil {
		sess.Messages = models.Transcript{}
	}
	return &sess, nil
}

// LoadOrNew loads id, or returns a new session with that id when none is stored.
// An empty id always yields a new session.
func (s *SessionStore) LoadOrNew(id, topic string) (*Session, error) {
	if id == "" {
		return s.New(topic), nil
	}
	sess, err := s.Load(id)
	if errors.Is(err, ErrSessionNotFound) {
		return &Session{ID: id, Topic: topic, Messages: models.Transcript{}}, nil
	}
	return sess, err
}

// Save writes the session atomically, replacing any previous version.
func (s *SessionStore) Save(sess *Session) error {
	path, err := s.path(sess.ID)
	if err != nil {
		return err
	}
	sess.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, sess.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Delete removes the session file.
func (s *SessionStore) Delete(id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns all stored sessions, most recently updated first.
// Files that cannot be parsed are skipped.
func (s *SessionStore) List() ([]*Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var out []*Session
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sessionExt) {
			continue
		}
		sess, err := s.Load(strings.TrimSuffix(name, sessionExt))
		if err != nil {
			continue
		}
		out = append(out, sess)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *SessionStore) path(id string) (string, error) {
	if !sessionIDPattern.MatchString(id) {
		return "", fmt.Errorf("invalid session id %q", id)
	}
	return filepath.Join(s.dir, id+sessionExt), nil
}
