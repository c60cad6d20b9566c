// Package workspace keeps the per-device application state: the session,
// the board cache and the view cursors. A workspace is rebuilt from
// durable storage whenever it is not in memory.
package workspace

import (
	"context"
	"sync"
	"time"

	"anoa.com/classboard/internal/entity"
	"anoa.com/classboard/internal/modules/board/cache"
	"anoa.com/classboard/internal/modules/session/repository"
	session "anoa.com/classboard/internal/modules/session/service"
	"anoa.com/classboard/pkg/kvstore"
)

// Deps are shared by every workspace the registry creates.
type Deps struct {
	// Store is the unscoped durable store; each workspace scopes it to
	// "device:<id>".
	Store   kvstore.Store
	Fetcher cache.Fetcher

	OnLoaded         func(deviceID string, category entity.Category, items []entity.BoardItem)
	OnSessionChanged func(deviceID string, prev, next entity.Session)
}

type Workspace struct {
	ID      string
	Session *session.Store
	Cache   *cache.Cache
	Repo    repository.SessionRepository

	mu       sync.Mutex
	pages    map[entity.Category]int
	revealed int
	inFlight map[entity.Category]bool
	lastSeen time.Time
}

// New builds a workspace for deviceID and restores its session. The
// restore outlives a cancelled ctx. A storage error is returned together
// with a usable, signed-out workspace.
func New(ctx context.Context, deviceID string, deps Deps) (*Workspace, error) {
	scoped := kvstore.Namespace(deps.Store, "device:"+deviceID)
	repo := repository.NewSessionRepository(scoped)

	var onLoaded cache.LoadedHook
	if deps.OnLoaded != nil {
		onLoaded = func(c entity.Category, items []entity.BoardItem) {
			deps.OnLoaded(deviceID, c, items)
		}
	}

	ws := &Workspace{
		ID:       deviceID,
		Session:  session.NewStore(repo),
		Cache:    cache.New(deps.Fetcher, scoped, onLoaded),
		Repo:     repo,
		pages:    make(map[entity.Category]int),
		inFlight: make(map[entity.Category]bool),
		lastSeen: time.Now(),
	}
	_, err := ws.Session.Restore(context.WithoutCancel(ctx))

	ws.Session.Subscribe(func(prev, next entity.Session) {
		ws.ResetView()
		if deps.OnSessionChanged != nil {
			deps.OnSessionChanged(deviceID, prev, next)
		}
	})
	return ws, err
}

// ResetView puts every board back to its first page and hides the
// gallery.
func (w *Workspace) ResetView() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages = make(map[entity.Category]int)
	w.revealed = 0
}

// Page is the current page of a fixed-page board, starting at 1.
func (w *Workspace) Page(c entity.Category) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.pages[c]; ok {
		return p
	}
	return 1
}

func (w *Workspace) SetPage(c entity.Category, n int) {
	w.mu.Lock()
	w.pages[c] = n
	w.mu.Unlock()
}

func (w *Workspace) Revealed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.revealed
}

func (w *Workspace) SetRevealed(n int) {
	w.mu.Lock()
	w.revealed = n
	w.mu.Unlock()
}

// UpdateRevealed replaces the gallery count with fn(current) under the
// workspace lock, so concurrent reveals never hand out the same slice.
func (w *Workspace) UpdateRevealed(fn func(revealed int) int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.revealed = fn(w.revealed)
}

// BeginSubmit claims the submission slot of a board. It returns false
// while an earlier submission to the same board is still in flight.
func (w *Workspace) BeginSubmit(c entity.Category) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inFlight[c] {
		return false
	}
	w.inFlight[c] = true
	return true
}

func (w *Workspace) EndSubmit(c entity.Category) {
	w.mu.Lock()
	delete(w.inFlight, c)
	w.mu.Unlock()
}

func (w *Workspace) touch(now time.Time) {
	w.mu.Lock()
	w.lastSeen = now
	w.mu.Unlock()
}

// idleSince reports whether the workspace was last used before cutoff and
// has nothing in flight.
func (w *Workspace) idleSince(cutoff time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen.Before(cutoff) && len(w.inFlight) == 0
}
