package closet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"closet-go/internal/model"
)

// State is the Store's lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Store is the in-memory mirror of the signed-in user's items.
//
// Remove and ToggleFavorite apply locally first and roll back if the gateway
// call fails. Mutations on the same id are serialized. A response for an id
// that has left the collection, or that belongs to a session which has since
// ended, changes nothing.
//
// Safe for concurrent use; gateway calls happen outside the collection lock.
type Store struct {
	gateway ItemGateway
	session *SessionState
	logger  Logger
	locks   *itemLocks

	mu      sync.Mutex
	state   State
	items   []model.Item
	lastErr error
	// epoch changes on every Reset so late responses from a previous
	// session can be recognized.
	epoch   uint64
	toggles map[string]struct{}
	// ranks orders items by where they sit in the collection: load order,
	// with uploads ranked before everything loaded. items is always sorted
	// by rank, so a rolled-back remove finds its slot even after other
	// items have come and gone.
	ranks map[string]int64
	front int64
}

// NewStore creates a Store bound to session. The store empties itself
// whenever the session ends.
func NewStore(gateway ItemGateway, session *SessionState, logger Logger) *Store {
	s := &Store{
		gateway: gateway,
		session: session,
		logger:  logger,
		locks:   newItemLocks(),
		toggles: make(map[string]struct{}),
		ranks:   make(map[string]int64),
	}
	session.OnEnd(func(reason EndReason) {
		s.Reset()
	})
	return s
}

// Load fetches the full collection. Valid from Uninitialized or Failed.
// On failure the store moves to Failed and keeps whatever it held before.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateUninitialized && s.state != StateFailed {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("load while %s: %w", state, ErrInvalidState)
	}
	if !s.session.Active() {
		s.mu.Unlock()
		return ErrNoSession
	}
	s.state = StateLoading
	epoch := s.epoch
	s.mu.Unlock()

	items, err := s.gateway.ListItems(ctx)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return NewError(KindAuth, "load", "session ended while loading", nil)
	}
	if err != nil {
		s.state = StateFailed
		s.lastErr = err
		s.mu.Unlock()
		s.logger.Error("loading items failed", "error", err)
		s.handleAuthFailure(ctx, err)
		return err
	}
	s.items = cloneItems(items)
	s.ranks = make(map[string]int64, len(items))
	for i, it := range s.items {
		s.ranks[it.ID] = int64(i)
	}
	s.front = 0
	s.state = StateReady
	s.lastErr = nil
	s.mu.Unlock()

	s.logger.Info("items loaded", "count", len(items))
	return nil
}

// Upload sends a new item and, once the server confirms it, puts it at the
// front of the collection. Nothing is inserted before confirmation because
// the server assigns the id.
func (s *Store) Upload(ctx context.Context, image []byte, meta model.ItemMetadata) (*model.Item, error) {
	epoch, err := s.requireReady("upload")
	if err != nil {
		return nil, err
	}

	item, err := s.gateway.UploadItem(ctx, image, meta)
	if err != nil {
		s.fail("upload", err, "")
		s.handleAuthFailure(ctx, err)
		return nil, err
	}
	if item == nil || item.ID == "" {
		err := NewError(KindServer, "upload", "response is missing the new item", nil)
		s.fail("upload", err, "")
		return nil, err
	}

	s.mu.Lock()
	if s.epoch == epoch && s.state == StateReady && s.indexOf(item.ID) < 0 {
		s.items = slices.Insert(s.items, 0, cloneItem(*item))
		s.front--
		s.ranks[item.ID] = s.front
	}
	s.mu.Unlock()

	s.logger.Info("item uploaded", "id", item.ID)
	out := cloneItem(*item)
	return &out, nil
}

// Remove deletes id locally, then remotely. If the remote delete fails the
// item goes back to where it was.
func (s *Store) Remove(ctx context.Context, id string) error {
	release, err := s.locks.acquire(ctx, id)
	if err != nil {
		return NewError(KindTransport, "remove", "", err)
	}
	defer release()

	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("remove while %s: %w", state, ErrInvalidState)
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return NewError(KindNotFound, "remove", "item not in closet", nil)
	}
	removed := s.items[idx]
	s.items = slices.Delete(s.items, idx, idx+1)
	epoch := s.epoch
	s.mu.Unlock()

	if err := s.gateway.DeleteItem(ctx, id); err != nil {
		s.mu.Lock()
		if s.epoch == epoch && s.indexOf(id) < 0 {
			s.items = slices.Insert(s.items, s.slotFor(id, idx), removed)
		}
		s.mu.Unlock()

		s.fail("remove", err, id)
		s.handleAuthFailure(ctx, err)
		return err
	}

	s.mu.Lock()
	if s.epoch == epoch {
		delete(s.ranks, id)
	}
	s.mu.Unlock()

	s.logger.Info("item deleted", "id", id)
	return nil
}

// ToggleFavorite flips id's favorite flag locally, then remotely, and
// settles on the value the server reports. A second toggle for the same id
// while one is in flight is refused with ErrOperationPending.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	if _, busy := s.toggles[id]; busy {
		s.mu.Unlock()
		return false, ErrOperationPending
	}
	s.toggles[id] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.toggles, id)
		s.mu.Unlock()
	}()

	release, err := s.locks.acquire(ctx, id)
	if err != nil {
		return false, NewError(KindTransport, "favorite", "", err)
	}
	defer release()

	s.mu.Lock()
	if s.state != StateReady {
		state := s.state
		s.mu.Unlock()
		return false, fmt.Errorf("favorite while %s: %w", state, ErrInvalidState)
	}
	idx := s.indexOf(id)
	if idx < 0 {
		s.mu.Unlock()
		return false, NewError(KindNotFound, "favorite", "item not in closet", nil)
	}
	optimistic := !s.items[idx].IsFavorite
	s.items[idx].IsFavorite = optimistic
	epoch := s.epoch
	s.mu.Unlock()

	confirmed, err := s.gateway.ToggleFavorite(ctx, id)

	s.mu.Lock()
	idx = s.indexOf(id)
	present := s.epoch == epoch && idx >= 0
	if err != nil {
		if present {
			s.items[idx].IsFavorite = !optimistic
		}
		s.mu.Unlock()
		s.fail("favorite", err, id)
		s.handleAuthFailure(ctx, err)
		return !optimistic, err
	}
	if present {
		s.items[idx].IsFavorite = confirmed
	}
	s.mu.Unlock()

	if confirmed != optimistic {
		s.logger.Warn("favorite reconciled with server", "id", id, "favorite", confirmed)
	}
	s.logger.Info("favorite toggled", "id", id, "favorite", confirmed)
	return confirmed, nil
}

// Search asks the server to filter. The local collection is not touched.
func (s *Store) Search(ctx context.Context, criteria model.SearchCriteria) ([]model.Item, error) {
	if !s.session.Active() {
		return nil, ErrNoSession
	}
	items, err := s.gateway.SearchItems(ctx, criteria)
	if err != nil {
		s.fail("search", err, "")
		s.handleAuthFailure(ctx, err)
		return nil, err
	}
	return cloneItems(items), nil
}

// View projects the current collection through criteria.
func (s *Store) View(criteria model.FilterCriteria) View {
	return Project(s.Items(), criteria)
}

// Items returns a copy of the collection.
func (s *Store) Items() []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Item returns a copy of the item with the given id.
func (s *Store) Item(id string) (model.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return model.Item{}, false
	}
	return cloneItem(s.items[idx]), true
}

// State returns the lifecycle state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent failure, cleared by a successful Load.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Reset drops all items and returns to Uninitialized. Responses still in
// flight are ignored when they arrive.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.ranks = make(map[string]int64)
	s.front = 0
	s.state = StateUninitialized
	s.lastErr = nil
	s.epoch++
}

func (s *Store) requireReady(op string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return 0, fmt.Errorf("%s while %s: %w", op, s.state, ErrInvalidState)
	}
	return s.epoch, nil
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(it model.Item) bool { return it.ID == id })
}

// slotFor returns where id goes back in: before the first item ranked after
// it. Without a rank it falls back to fallback, clamped. Called with s.mu held.
func (s *Store) slotFor(id string, fallback int) int {
	rank, ok := s.ranks[id]
	if !ok {
		return min(fallback, len(s.items))
	}
	for i, it := range s.items {
		if r, ok := s.ranks[it.ID]; ok && r > rank {
			return i
		}
	}
	return len(s.items)
}

func (s *Store) fail(op string, err error, id string) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()

	args := []any{"op", op, "kind", KindOf(err).String(), "error", err}
	if id != "" {
		args = append(args, "id", id)
	}
	s.logger.Error("operation failed", args...)
}

// handleAuthFailure ends the session when the server rejected the credential.
func (s *Store) handleAuthFailure(ctx context.Context, err error) {
	if !errors.Is(err, ErrAuth) || !s.session.Active() {
		return
	}
	if err := s.session.Expire(context.WithoutCancel(ctx)); err != nil {
		s.logger.Error("expiring session failed", "error", err)
	}
}
