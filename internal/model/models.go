package model

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Item is one clothing item owned by a user.
// ID, UserID and ImageURL are assigned by the server and never change.
type Item struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	ImageURL   string     `json:"image_url"`
	Category   string     `json:"category,omitempty"`
	Color      string     `json:"color,omitempty"`
	Brand      string     `json:"brand,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	IsFavorite bool       `json:"is_favorite"`
	CreatedAt  Timestamp  `json:"created_at"`
	UpdatedAt  *Timestamp `json:"updated_at,omitempty"`
}

// ItemMetadata holds the optional fields sent with an upload.
type ItemMetadata struct {
	Category string
	Color    string
	Brand    string
	Notes    string
}

// Session is the authenticated principal. Either all three credential
// fields are set or there is no session at all.
type Session struct {
	UserID    string
	Email     string
	Token     string
	CreatedAt time.Time
}

// Valid reports whether every credential field is present.
func (s *Session) Valid() bool {
	return s != nil && s.UserID != "" && s.Email != "" && s.Token != ""
}

// FilterCriteria selects a subset of the cached items. Not persisted.
type FilterCriteria struct {
	Query         string
	Category      string
	Color         string
	FavoritesOnly bool
}

// SearchCriteria are the parameters of a server-side search.
// IsFavorite is tri-state: nil means "don't filter".
type SearchCriteria struct {
	Query      string
	Category   string
	Color      string
	Brand      string
	IsFavorite *bool
}

// Operation is a locally recorded CLI operation.
type Operation struct {
	ID         int64
	Operation  string
	Parameters string
	Status     string
	StartedAt  time.Time
	FinishedAt sql.NullTime
}

// timestampLayouts are tried in order. The API emits zone-less ISO-8601
// timestamps; those are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp decodes the API's several timestamp spellings.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", raw)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
