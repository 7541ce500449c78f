package closet

import (
	"context"
	"encoding/json"

	"closet-go/internal/model"
)

// ItemGateway is the boundary to the remote item API. Each method is exactly
// one request/response round trip; implementations hold no item state.
//
// Failures are *Error values: AuthError on 401, NotFoundError on 404,
// ServerError on 5xx, TransportError when the server cannot be reached.
// An empty result is a success, not an error.
type ItemGateway interface {
	// ListItems returns the signed-in user's items in server order.
	ListItems(ctx context.Context) ([]model.Item, error)

	// UploadItem stores a new item and returns it with its server-assigned id.
	// Implementations validate image locally before sending.
	UploadItem(ctx context.Context, image []byte, meta model.ItemMetadata) (*model.Item, error)

	// DeleteItem removes an item. NotFoundError if the id is unknown.
	DeleteItem(ctx context.Context, id string) error

	// ToggleFavorite flips the favorite flag and returns the new value.
	ToggleFavorite(ctx context.Context, id string) (bool, error)

	// SearchItems filters server-side.
	SearchItems(ctx context.Context, criteria model.SearchCriteria) ([]model.Item, error)
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the signup form fields.
type Registration struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// AuthResult is the auth endpoints' response.
type AuthResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
}

// AuthGateway issues credentials.
type AuthGateway interface {
	Signup(ctx context.Context, reg Registration) (*AuthResult, error)
	Login(ctx context.Context, creds Credentials) (*AuthResult, error)
}

// OutfitRequest narrows outfit suggestions. Empty fields are not sent.
type OutfitRequest struct {
	Occasion        string
	Weather         string
	StylePreference string
}

// AdvisorGateway reaches the server's styling endpoints. Their bodies are
// produced by the server and returned untouched. Errors follow the same
// taxonomy as ItemGateway; a user with no items gets NotFoundError from the
// outfit and analysis endpoints.
type AdvisorGateway interface {
	RecommendOutfits(ctx context.Context, req OutfitRequest) (json.RawMessage, error)
	AnalyzeCloset(ctx context.Context) (json.RawMessage, error)
	// WeatherRecommendations omits the location parameter when location is "".
	WeatherRecommendations(ctx context.Context, location string) (json.RawMessage, error)
}

// Gateway is the full remote API.
type Gateway interface {
	ItemGateway
	AuthGateway
}

// CredentialSource supplies the bearer token for outgoing requests.
// Returns "" when signed out.
type CredentialSource interface {
	Token() string
}

// SessionStorage persists the credential triple across process restarts.
type SessionStorage interface {
	// Load returns the persisted session, or nil when none is stored. A
	// record whose token cannot be recovered yields an error wrapping
	// ErrUnreadableSession.
	Load(ctx context.Context) (*model.Session, error)

	// Save replaces any persisted session with s.
	Save(ctx context.Context, s *model.Session) error

	// Clear removes the persisted session. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
