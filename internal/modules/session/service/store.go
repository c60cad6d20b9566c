package session

import (
	"context"
	"errors"
	"log"
	"sync"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/modules/session/repository"
	"anoa.com/classboard/pkg/kvstore"
)

// Observer is called after every session mutation, outside the store's
// lock.
type Observer func(prev, next entity.Session)

// Store holds the one current session of a device. The in-memory value is
// authoritative; persistence failures are reported but never roll it back.
type Store struct {
	repo repository.SessionRepository

	mu        sync.RWMutex
	current   entity.Session
	observers []Observer
}

func NewStore(repo repository.SessionRepository) *Store {
	return &Store{repo: repo, current: entity.AnonymousSession()}
}

// Restore loads the persisted session. A missing or unreadable record
// yields an unauthenticated session. Any other storage error also leaves
// the store signed out but is returned so the caller can retry later.
// A restored session is trusted as-is: there is no revalidation against
// the backend.
func (s *Store) Restore(ctx context.Context) (entity.Session, error) {
	sess, err := s.repo.LoadSession(ctx)
	switch {
	case err == nil:
	case errors.Is(err, kvstore.ErrNotFound):
		sess, err = entity.AnonymousSession(), nil
	case errors.Is(err, repository.ErrCorruptSession):
		log.Printf("[session] %v, starting signed out", err)
		sess, err = entity.AnonymousSession(), nil
	default:
		sess = entity.AnonymousSession()
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return sess, err
}

func (s *Store) Current() entity.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SignIn replaces the current session and persists it.
func (s *Store) SignIn(ctx context.Context, sess entity.Session) error {
	sess = sess.Normalize()
	prev := s.swap(sess)
	err := s.repo.SaveSession(ctx, sess)
	s.notify(prev, sess)
	return err
}

// SignOut deletes only the session key. Cached boards, the remembered ID
// and last-read marks are kept.
func (s *Store) SignOut(ctx context.Context) error {
	next := entity.AnonymousSession()
	prev := s.swap(next)
	err := s.repo.DeleteSession(ctx)
	s.notify(prev, next)
	return err
}

// Subscribe registers o for every later mutation.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	s.observers = append(s.observers, o)
	s.mu.Unlock()
}

func (s *Store) RememberedID(ctx context.Context) string {
	id, err := s.repo.RememberedID(ctx)
	if err != nil {
		log.Printf("[session] read remembered id: %v", err)
		return ""
	}
	return id
}

// Remember stores the student ID for the login form, or forgets it when
// id is empty. The password is never stored.
func (s *Store) Remember(ctx context.Context, id string) error {
	return s.repo.SetRememberedID(ctx, id)
}

func (s *Store) swap(next entity.Session) entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = next
	return prev
}

func (s *Store) notify(prev, next entity.Session) {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, o := range observers {
		o(prev, next)
	}
}
