package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/pkg/kvstore"
)

const (
	sessionKey      = "session"
	rememberedIDKey = "remembered_id"
	lastReadPrefix  = "last_read"
)

// ErrCorruptSession means a session was stored but cannot be decoded.
var ErrCorruptSession = errors.New("stored session is unreadable")

// SessionRepository persists one device's session fields. The store it is
// given is already scoped to the device.
type SessionRepository interface {
	LoadSession(ctx context.Context) (entity.Session, error)
	SaveSession(ctx context.Context, session entity.Session) error
	DeleteSession(ctx context.Context) error

	RememberedID(ctx context.Context) (string, error)
	SetRememberedID(ctx context.Context, id string) error

	LastRead(ctx context.Context, category entity.Category) (time.Time, error)
	MarkRead(ctx context.Context, category entity.Category, at time.Time) error
}

type sessionRepository struct {
	store kvstore.Store
}

func NewSessionRepository(store kvstore.Store) SessionRepository {
	return &sessionRepository{store: store}
}

// LoadSession returns kvstore.ErrNotFound when nothing was saved.
func (r *sessionRepository) LoadSession(ctx context.Context) (entity.Session, error) {
	raw, err := r.store.Get(ctx, sessionKey)
	if err != nil {
		return entity.Session{}, err
	}
	var s entity.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return entity.Session{}, fmt.Errorf("%w: %v", ErrCorruptSession, err)
	}
	return s.Normalize(), nil
}

func (r *sessionRepository) SaveSession(ctx context.Context, session entity.Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.store.Set(ctx, sessionKey, string(raw))
}

func (r *sessionRepository) DeleteSession(ctx context.Context) error {
	return r.store.Delete(ctx, sessionKey)
}

// RememberedID returns "" when no ID is remembered.
func (r *sessionRepository) RememberedID(ctx context.Context) (string, error) {
	id, err := r.store.Get(ctx, rememberedIDKey)
	if errors.Is(err, kvstore.ErrNotFound) {
		return "", nil
	}
	return id, err
}

// SetRememberedID stores id, or forgets it when id is empty.
func (r *sessionRepository) SetRememberedID(ctx context.Context, id string) error {
	if id == "" {
		return r.store.Delete(ctx, rememberedIDKey)
	}
	return r.store.Set(ctx, rememberedIDKey, id)
}

// LastRead returns the zero time for a board never opened.
func (r *sessionRepository) LastRead(ctx context.Context, category entity.Category) (time.Time, error) {
	raw, err := r.store.Get(ctx, category.StorageKey(lastReadPrefix))
	if errors.Is(err, kvstore.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return t, nil
}

func (r *sessionRepository) MarkRead(ctx context.Context, category entity.Category, at time.Time) error {
	return r.store.Set(ctx, category.StorageKey(lastReadPrefix), at.UTC().Format(time.RFC3339Nano))
}
