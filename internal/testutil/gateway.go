package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"closet-go/internal/closet"
	"closet-go/internal/model"
)

// Operation names understood by FakeGateway.SetError and Hold.
const (
	OpList     = "list"
	OpUpload   = "upload"
	OpDelete   = "delete"
	OpFavorite = "favorite"
	OpSearch   = "search"
	OpLogin    = "login"
	OpSignup   = "signup"
)

// DefaultEmail and DefaultUserID identify the account FakeGateway signs in.
const (
	DefaultEmail    = "user@example.com"
	DefaultPassword = "secret"
	DefaultUserID   = "user-1"
)

// FakeGateway is a scripted closet.Gateway. It keeps a server-side copy of
// the items so deletes and toggles behave like the real API, and lets tests
// inject errors or hold a call open until released. Safe for concurrent use.
type FakeGateway struct {
	mu       sync.Mutex
	items    []model.Item
	errs     map[string]error
	gates    map[string]*Gate
	calls    map[string]int
	tokens   []string
	creds    closet.CredentialSource
	nextID   int
	auth     *closet.AuthResult
	favorite map[string]bool // forced ToggleFavorite results
	searched []model.SearchCriteria
}

// NewFakeGateway creates a FakeGateway serving items.
func NewFakeGateway(items ...model.Item) *FakeGateway {
	return &FakeGateway{
		items:    slices.Clone(items),
		errs:     make(map[string]error),
		gates:    make(map[string]*Gate),
		calls:    make(map[string]int),
		favorite: make(map[string]bool),
		auth: &closet.AuthResult{
			AccessToken: MintToken(DefaultUserID, FixedClock().Now().Add(7*24*time.Hour)),
			TokenType:   "bearer",
			UserID:      DefaultUserID,
			Email:       DefaultEmail,
		},
	}
}

// SetCredentials records where tokens come from.
func (g *FakeGateway) SetCredentials(src closet.CredentialSource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creds = src
}

// SetError makes every later call of op fail with err. A nil err clears it.
func (g *FakeGateway) SetError(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.errs, op)
		return
	}
	g.errs[op] = err
}

// SetAuthResult replaces what Login and Signup return.
func (g *FakeGateway) SetAuthResult(res *closet.AuthResult) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.auth = res
}

// ForceFavorite makes ToggleFavorite(id) report value regardless of state.
func (g *FakeGateway) ForceFavorite(id string, value bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.favorite[id] = value
}

// Calls returns how many times op was invoked.
func (g *FakeGateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

// Tokens returns the bearer tokens seen by item calls, in order.
func (g *FakeGateway) Tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.tokens)
}

// Searches returns the criteria passed to SearchItems.
func (g *FakeGateway) Searches() []model.SearchCriteria {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.searched)
}

// ServerItems returns the fake server's copy of the items.
func (g *FakeGateway) ServerItems() []model.Item {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.items)
}

// Hold makes the next call of op block after it is counted until the
// returned Gate is released.
func (g *FakeGateway) Hold(op string) *Gate {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := &Gate{entered: make(chan struct{}), release: make(chan struct{})}
	g.gates[op] = gate
	return gate
}

// Gate holds one gateway call open.
type Gate struct {
	entered     chan struct{}
	release     chan struct{}
	enterOnce   sync.Once
	releaseOnce sync.Once
}

// WaitEntered blocks until the held call has started.
func (gt *Gate) WaitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-gt.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gateway call")
	}
}

// Release lets the held call continue.
func (gt *Gate) Release() {
	gt.releaseOnce.Do(func() { close(gt.release) })
}

// begin counts the call, waits on any gate and returns the scripted error.
func (g *FakeGateway) begin(ctx context.Context, op string, item bool) error {
	g.mu.Lock()
	g.calls[op]++
	if item {
		token := ""
		if g.creds != nil {
			token = g.creds.Token()
		}
		g.tokens = append(g.tokens, token)
	}
	gate := g.gates[op]
	delete(g.gates, op)
	g.mu.Unlock()

	if gate != nil {
		gate.enterOnce.Do(func() { close(gate.entered) })
		select {
		case <-gate.release:
		case <-ctx.Done():
			return closet.NewError(closet.KindTransport, op, "request canceled", ctx.Err())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errs[op]
}

func (g *FakeGateway) Signup(ctx context.Context, reg closet.Registration) (*closet.AuthResult, error) {
	if err := g.begin(ctx, OpSignup, false); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	res := *g.auth
	res.Email = reg.Email
	return &res, nil
}

func (g *FakeGateway) Login(ctx context.Context, creds closet.Credentials) (*closet.AuthResult, error) {
	if err := g.begin(ctx, OpLogin, false); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	res := *g.auth
	return &res, nil
}

func (g *FakeGateway) ListItems(ctx context.Context) ([]model.Item, error) {
	if err := g.begin(ctx, OpList, true); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.items), nil
}

func (g *FakeGateway) UploadItem(ctx context.Context, image []byte, meta model.ItemMetadata) (*model.Item, error) {
	if err := g.begin(ctx, OpUpload, true); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, closet.Validationf(OpUpload, "image is empty")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	item := model.Item{
		ID:        fmt.Sprintf("srv-%d", g.nextID),
		UserID:    DefaultUserID,
		ImageURL:  fmt.Sprintf("https://img.example.com/srv-%d.jpg", g.nextID),
		Category:  meta.Category,
		Color:     meta.Color,
		Brand:     meta.Brand,
		Notes:     meta.Notes,
		CreatedAt: model.NewTimestamp(FixedClock().Now()),
	}
	g.items = slices.Insert(g.items, 0, item)
	return &item, nil
}

func (g *FakeGateway) DeleteItem(ctx context.Context, id string) error {
	if err := g.begin(ctx, OpDelete, true); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	idx := slices.IndexFunc(g.items, func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		return closet.NewError(closet.KindNotFound, OpDelete, "Item not found", nil)
	}
	g.items = slices.Delete(g.items, idx, idx+1)
	return nil
}

func (g *FakeGateway) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if err := g.begin(ctx, OpFavorite, true); err != nil {
		return false, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if v, ok := g.favorite[id]; ok {
		return v, nil
	}
	idx := slices.IndexFunc(g.items, func(it model.Item) bool { return it.ID == id })
	if idx < 0 {
		return false, closet.NewError(closet.KindNotFound, OpFavorite, "Item not found", nil)
	}
	g.items[idx].IsFavorite = !g.items[idx].IsFavorite
	return g.items[idx].IsFavorite, nil
}

func (g *FakeGateway) SearchItems(ctx context.Context, criteria model.SearchCriteria) ([]model.Item, error) {
	if err := g.begin(ctx, OpSearch, true); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.searched = append(g.searched, criteria)
	out := []model.Item{}
	for _, it := range g.items {
		if criteria.Category != "" && it.Category != criteria.Category {
			continue
		}
		if criteria.IsFavorite != nil && it.IsFavorite != *criteria.IsFavorite {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

var _ closet.Gateway = (*FakeGateway)(nil)
