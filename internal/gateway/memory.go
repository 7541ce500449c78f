package gateway

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"closet-go/internal/closet"
	"closet-go/internal/imaging"
	"closet-go/internal/model"
)

// TokenExpiry is how long tokens issued by MemoryGateway stay valid.
const TokenExpiry = 7 * 24 * time.Hour

// MemoryGateway is an in-process stand-in for the closet API. It keeps
// accounts and items in memory and follows the server's behavior: items
// scoped to the token's user, newest first, and the server's search rules.
// Useful for offline use and tests. Safe for concurrent use.
type MemoryGateway struct {
	clock     closet.Clock
	idgen     closet.IDGenerator
	secret    []byte
	maxUpload int64

	mu    sync.Mutex
	creds closet.CredentialSource
	users map[string]*memoryUser // by lowercased email
	items []model.Item           // oldest first, all users
}

type memoryUser struct {
	id           string
	email        string
	fullName     string
	passwordHash []byte
}

type memoryClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

var _ Gateway = (*MemoryGateway)(nil)

// NewMemoryGateway creates an empty in-memory API.
func NewMemoryGateway(clock closet.Clock, idgen closet.IDGenerator, maxUpload int64) *MemoryGateway {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		panic(fmt.Sprintf("generating token secret: %v", err))
	}
	if maxUpload <= 0 {
		maxUpload = imaging.DefaultMaxSize
	}
	return &MemoryGateway{
		clock:     clock,
		idgen:     idgen,
		secret:    secret,
		maxUpload: maxUpload,
		users:     make(map[string]*memoryUser),
	}
}

// SetCredentials sets where bearer tokens come from.
func (m *MemoryGateway) SetCredentials(src closet.CredentialSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = src
}

// Signup creates an account and returns a token for it.
func (m *MemoryGateway) Signup(ctx context.Context, reg closet.Registration) (*closet.AuthResult, error) {
	key := strings.ToLower(strings.TrimSpace(reg.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.MinCost)
	if err != nil {
		return nil, closet.NewError(closet.KindValidation, "signup", "password cannot be used", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.users[key]; exists {
		return nil, closet.NewError(closet.KindValidation, "signup", "Email already registered", nil)
	}
	u := &memoryUser{
		id:           m.idgen.New(),
		email:        strings.TrimSpace(reg.Email),
		fullName:     reg.FullName,
		passwordHash: hash,
	}
	m.users[key] = u
	return m.issue(u)
}

// Login checks the password and returns a fresh token.
func (m *MemoryGateway) Login(ctx context.Context, creds closet.Credentials) (*closet.AuthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(creds.Password)) != nil {
		return nil, closet.NewError(closet.KindAuth, "login", "Incorrect email or password", nil)
	}
	return m.issue(u)
}

// issue must be called with m.mu held.
func (m *MemoryGateway) issue(u *memoryUser) (*closet.AuthResult, error) {
	now := m.clock.Now()
	claims := memoryClaims{
		Email: u.email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiry)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, closet.NewError(closet.KindServer, "auth", "signing token", err)
	}
	return &closet.AuthResult{
		AccessToken: signed,
		TokenType:   "bearer",
		UserID:      u.id,
		Email:       u.email,
	}, nil
}

// authenticate returns the user id behind the current bearer token.
// Must be called with m.mu held.
func (m *MemoryGateway) authenticate(op string) (string, error) {
	token := ""
	if m.creds != nil {
		token = m.creds.Token()
	}
	if token == "" {
		return "", closet.NewError(closet.KindAuth, op, "Not authenticated", nil)
	}

	var claims memoryClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(m.clock.Now))
	if err != nil {
		return "", closet.NewError(closet.KindAuth, op, "Could not validate credentials", err)
	}
	return claims.Subject, nil
}

// ListItems returns the caller's items, newest first.
func (m *MemoryGateway) ListItems(ctx context.Context) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, err := m.authenticate("list")
	if err != nil {
		return nil, err
	}
	return m.owned(userID), nil
}

// UploadItem validates the image and stores a new item.
func (m *MemoryGateway) UploadItem(ctx context.Context, image []byte, meta model.ItemMetadata) (*model.Item, error) {
	info, err := imaging.Validate(image, m.maxUpload)
	if err != nil {
		return nil, closet.NewError(closet.KindValidation, "upload", err.Error(), nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	userID, err := m.authenticate("upload")
	if err != nil {
		return nil, err
	}

	id := m.idgen.New()
	item := model.Item{
		ID:        id,
		UserID:    userID,
		ImageURL:  fmt.Sprintf("memory://%s/%s.%s", userID, id, extensionFor(info.Format)),
		Category:  meta.Category,
		Color:     meta.Color,
		Brand:     meta.Brand,
		Notes:     meta.Notes,
		CreatedAt: model.NewTimestamp(m.clock.Now()),
	}
	m.items = append(m.items, item)
	return &item, nil
}

// DeleteItem removes one of the caller's items.
func (m *MemoryGateway) DeleteItem(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, err := m.authenticate("delete")
	if err != nil {
		return err
	}
	idx := m.find(userID, id)
	if idx < 0 {
		return closet.NewError(closet.KindNotFound, "delete", "Item not found", nil)
	}
	m.items = slices.Delete(m.items, idx, idx+1)
	return nil
}

// ToggleFavorite flips one of the caller's items.
func (m *MemoryGateway) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, err := m.authenticate("favorite")
	if err != nil {
		return false, err
	}
	idx := m.find(userID, id)
	if idx < 0 {
		return false, closet.NewError(closet.KindNotFound, "favorite", "Item not found", nil)
	}
	m.items[idx].IsFavorite = !m.items[idx].IsFavorite
	updated := model.NewTimestamp(m.clock.Now())
	m.items[idx].UpdatedAt = &updated
	return m.items[idx].IsFavorite, nil
}

// SearchItems applies the server's search rules: category, color and brand
// compare case-insensitively for equality, the query is a case-insensitive
// substring of notes, category, color or brand.
func (m *MemoryGateway) SearchItems(ctx context.Context, criteria model.SearchCriteria) ([]model.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, err := m.authenticate("search")
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(criteria.Query)
	out := []model.Item{}
	for _, it := range m.owned(userID) {
		if criteria.IsFavorite != nil && it.IsFavorite != *criteria.IsFavorite {
			continue
		}
		if criteria.Category != "" && !strings.EqualFold(it.Category, criteria.Category) {
			continue
		}
		if criteria.Color != "" && !strings.EqualFold(it.Color, criteria.Color) {
			continue
		}
		if criteria.Brand != "" && !strings.EqualFold(it.Brand, criteria.Brand) {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(it.Notes), query) &&
			!strings.Contains(strings.ToLower(it.Category), query) &&
			!strings.Contains(strings.ToLower(it.Color), query) &&
			!strings.Contains(strings.ToLower(it.Brand), query) {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

// Seed stores items directly, bypassing upload validation. Items keep their
// ids and owners.
func (m *MemoryGateway) Seed(items ...model.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, items...)
}

// owned returns userID's items newest first. Must be called with m.mu held.
func (m *MemoryGateway) owned(userID string) []model.Item {
	out := []model.Item{}
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].UserID == userID {
			out = append(out, m.items[i])
		}
	}
	return out
}

// find must be called with m.mu held.
func (m *MemoryGateway) find(userID, id string) int {
	return slices.IndexFunc(m.items, func(it model.Item) bool {
		return it.ID == id && it.UserID == userID
	})
}

// essentials are the categories AnalyzeCloset reports as missing.
var essentials = []string{"Shirt", "Pants", "Shoes", "Jacket"}

const noItemsDetail = "No clothing items found. Please add items to your closet first."

type memoryOutfit struct {
	Name      string   `json:"name"`
	Items     []string `json:"items"`
	Reasoning string   `json:"reasoning"`
}

// RecommendOutfits pairs the caller's items one per category: the first
// outfit takes the first item of every category, the second the second, up
// to three outfits.
func (m *MemoryGateway) RecommendOutfits(ctx context.Context, req closet.OutfitRequest) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, err := m.authenticate("outfits")
	if err != nil {
		return nil, err
	}
	items := m.owned(userID)
	if len(items) == 0 {
		return nil, closet.NewError(closet.KindNotFound, "outfits", noItemsDetail, nil)
	}

	order, byCategory := groupByCategory(items)
	outfits := []memoryOutfit{}
	for i := range 3 {
		var picked []string
		for _, cat := range order {
			if i < len(byCategory[cat]) {
				picked = append(picked, describe(byCategory[cat][i]))
			}
		}
		if len(picked) == 0 {
			break
		}
		outfits = append(outfits, memoryOutfit{
			Name:      fmt.Sprintf("Outfit %d", i+1),
			Items:     picked,
			Reasoning: "one piece from each category",
		})
	}

	return marshalAdvice("outfits", map[string]any{
		"success":         true,
		"recommendations": map[string]any{"outfits": outfits},
		"context": map[string]any{
			"occasion":         nullable(req.Occasion),
			"weather":          nullable(req.Weather),
			"style_preference": nullable(req.StylePreference),
			"items_count":      len(items),
		},
	})
}

// AnalyzeCloset counts the caller's items per category and lists the
// essentials with none.
func (m *MemoryGateway) AnalyzeCloset(ctx context.Context) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userID, err := m.authenticate("analyze")
	if err != nil {
		return nil, err
	}
	items := m.owned(userID)
	if len(items) == 0 {
		return nil, closet.NewError(closet.KindNotFound, "analyze", noItemsDetail, nil)
	}

	order, byCategory := groupByCategory(items)
	counts := make(map[string]int, len(order))
	for _, cat := range order {
		counts[cat] = len(byCategory[cat])
	}
	missing := []string{}
	for _, want := range essentials {
		if !slices.ContainsFunc(order, func(c string) bool { return strings.EqualFold(c, want) }) {
			missing = append(missing, want)
		}
	}

	return marshalAdvice("analyze", map[string]any{
		"success": true,
		"analysis": map[string]any{
			"missing_essentials": missing,
			"category_counts":    counts,
			"wardrobe_analysis":  fmt.Sprintf("%d items across %d categories", len(items), len(order)),
		},
	})
}

// WeatherRecommendations returns fixed mild-weather advice, as the API does
// without a weather provider configured.
func (m *MemoryGateway) WeatherRecommendations(ctx context.Context, location string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.authenticate("weather"); err != nil {
		return nil, err
	}
	return marshalAdvice("weather", map[string]any{
		"success":  true,
		"location": nullable(location),
		"weather": map[string]any{
			"temperature": 72,
			"condition":   "sunny",
			"humidity":    45,
			"wind_speed":  10,
			"recommendations": map[string]any{
				"layers":               "Light layers recommended",
				"accessories":          []string{"sunglasses", "light jacket"},
				"avoid":                []string{"heavy coats", "winter boots"},
				"suggested_categories": []string{"t-shirt", "jeans", "sneakers"},
			},
		},
	})
}

// groupByCategory buckets items by category in first-seen order. Items
// without a category share the "Other" bucket.
func groupByCategory(items []model.Item) ([]string, map[string][]model.Item) {
	var order []string
	byCategory := make(map[string][]model.Item)
	for _, it := range items {
		cat := it.Category
		if cat == "" {
			cat = "Other"
		}
		if _, seen := byCategory[cat]; !seen {
			order = append(order, cat)
		}
		byCategory[cat] = append(byCategory[cat], it)
	}
	return order, byCategory
}

func describe(it model.Item) string {
	desc := it.Category
	if desc == "" {
		desc = "Item"
	}
	if it.Color != "" {
		desc += " in " + it.Color
	}
	if it.Brand != "" {
		desc += " by " + it.Brand
	}
	return desc
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalAdvice(op string, v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, closet.NewError(closet.KindServer, op, "encoding response", err)
	}
	return data, nil
}
