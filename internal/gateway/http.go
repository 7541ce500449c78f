package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"closet-go/internal/closet"
	"closet-go/internal/imaging"
	"closet-go/internal/model"
)

// DefaultTimeout bounds a single round trip when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// HTTPOptions tunes an HTTPGateway. Zero values pick defaults.
type HTTPOptions struct {
	Timeout time.Duration
	// RequestsPerSecond limits outgoing requests; 0 disables limiting.
	RequestsPerSecond float64
	Burst             int
	MaxUploadSize     int64
	// Client replaces the default *http.Client (its Timeout is left alone).
	Client *http.Client
}

// HTTPGateway talks to the closet REST API over HTTP.
// It holds no item state; it is safe for concurrent use.
type HTTPGateway struct {
	baseURL   *url.URL
	client    *http.Client
	limiter   *rate.Limiter
	idgen     closet.IDGenerator
	logger    closet.Logger
	maxUpload int64

	mu    sync.RWMutex
	creds closet.CredentialSource
}

var _ Gateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a gateway rooted at baseURL (e.g. "http://localhost:8000").
func NewHTTPGateway(baseURL string, idgen closet.IDGenerator, logger closet.Logger, opts HTTPOptions) (*HTTPGateway, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https: %q", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("api base url has no host: %q", baseURL)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	maxUpload := opts.MaxUploadSize
	if maxUpload <= 0 {
		maxUpload = imaging.DefaultMaxSize
	}

	return &HTTPGateway{
		baseURL:   u,
		client:    client,
		limiter:   limiter,
		idgen:     idgen,
		logger:    logger,
		maxUpload: maxUpload,
	}, nil
}

// SetCredentials sets where bearer tokens come from.
func (g *HTTPGateway) SetCredentials(src closet.CredentialSource) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creds = src
}

func (g *HTTPGateway) token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.creds == nil {
		return ""
	}
	return g.creds.Token()
}

type itemsResponse struct {
	Items []model.Item `json:"items"`
	Count int          `json:"count"`
}

type uploadResponse struct {
	Message string      `json:"message"`
	Item    *model.Item `json:"item"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type favoriteResponse struct {
	Message    string `json:"message"`
	IsFavorite *bool  `json:"is_favorite"`
}

// missingField reports a 2xx body that lacks a field the contract requires.
func missingField(op, field string) *closet.Error {
	return closet.NewError(closet.KindServer, op, "malformed response", fmt.Errorf("no %s in response", field))
}

// Signup registers an account.
func (g *HTTPGateway) Signup(ctx context.Context, reg closet.Registration) (*closet.AuthResult, error) {
	var out closet.AuthResult
	if err := g.doJSON(ctx, "signup", http.MethodPost, []string{"api", "auth", "signup"}, reg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Login exchanges credentials for a bearer token.
func (g *HTTPGateway) Login(ctx context.Context, creds closet.Credentials) (*closet.AuthResult, error) {
	var out closet.AuthResult
	if err := g.doJSON(ctx, "login", http.MethodPost, []string{"api", "auth", "login"}, creds, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListItems fetches every item of the signed-in user.
func (g *HTTPGateway) ListItems(ctx context.Context) ([]model.Item, error) {
	var out itemsResponse
	req, err := g.newRequest(ctx, "list", http.MethodGet, []string{"api", "items"}, nil, nil)
	if err != nil {
		return nil, err
	}
	if err := g.do(req, "list", &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		return nil, missingField("list", "items")
	}
	return out.Items, nil
}

// UploadItem validates image locally and posts it as multipart form data.
func (g *HTTPGateway) UploadItem(ctx context.Context, image []byte, meta model.ItemMetadata) (*model.Item, error) {
	info, err := imaging.Validate(image, g.maxUpload)
	if err != nil {
		return nil, closet.NewError(closet.KindValidation, "upload", err.Error(), nil)
	}

	body, contentType, err := encodeUpload(image, info, meta)
	if err != nil {
		return nil, fmt.Errorf("encoding upload: %w", err)
	}

	req, err := g.newRequest(ctx, "upload", http.MethodPost, []string{"api", "items", "upload"}, nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	var out uploadResponse
	if err := g.do(req, "upload", &out); err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, closet.NewError(closet.KindServer, "upload", "response has no item", nil)
	}
	return out.Item, nil
}

// DeleteItem deletes one item.
func (g *HTTPGateway) DeleteItem(ctx context.Context, id string) error {
	req, err := g.newRequest(ctx, "delete", http.MethodDelete, []string{"api", "items", url.PathEscape(id)}, nil, nil)
	if err != nil {
		return err
	}
	var out messageResponse
	return g.do(req, "delete", &out)
}

// ToggleFavorite flips an item's favorite flag and returns the server's new value.
func (g *HTTPGateway) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	req, err := g.newRequest(ctx, "favorite", http.MethodPost, []string{"api", "items", url.PathEscape(id), "favorite"}, nil, nil)
	if err != nil {
		return false, err
	}
	var out favoriteResponse
	if err := g.do(req, "favorite", &out); err != nil {
		return false, err
	}
	if out.IsFavorite == nil {
		return false, missingField("favorite", "is_favorite")
	}
	return *out.IsFavorite, nil
}

// SearchItems runs a server-side search. Only set criteria are sent.
func (g *HTTPGateway) SearchItems(ctx context.Context, criteria model.SearchCriteria) ([]model.Item, error) {
	q := url.Values{}
	setIf(q, "query", criteria.Query)
	setIf(q, "category", criteria.Category)
	setIf(q, "color", criteria.Color)
	setIf(q, "brand", criteria.Brand)
	if criteria.IsFavorite != nil {
		q.Set("is_favorite", strconv.FormatBool(*criteria.IsFavorite))
	}

	req, err := g.newRequest(ctx, "search", http.MethodGet, []string{"api", "items", "search"}, q, nil)
	if err != nil {
		return nil, err
	}
	var out itemsResponse
	if err := g.do(req, "search", &out); err != nil {
		return nil, err
	}
	if out.Items == nil {
		return nil, missingField("search", "items")
	}
	return out.Items, nil
}

// RecommendOutfits asks the server for outfit suggestions. The parameters
// travel in the query string of an empty POST, as the server expects.
func (g *HTTPGateway) RecommendOutfits(ctx context.Context, in closet.OutfitRequest) (json.RawMessage, error) {
	q := url.Values{}
	setIf(q, "occasion", in.Occasion)
	setIf(q, "weather", in.Weather)
	setIf(q, "style_preference", in.StylePreference)
	return g.passthrough(ctx, "outfits", http.MethodPost, []string{"api", "recommendations", "outfits"}, q)
}

// AnalyzeCloset asks the server for a wardrobe gap analysis.
func (g *HTTPGateway) AnalyzeCloset(ctx context.Context) (json.RawMessage, error) {
	return g.passthrough(ctx, "analyze", http.MethodGet, []string{"api", "recommendations", "closet-analysis"}, nil)
}

// WeatherRecommendations asks for clothing advice for location.
func (g *HTTPGateway) WeatherRecommendations(ctx context.Context, location string) (json.RawMessage, error) {
	q := url.Values{}
	setIf(q, "location", location)
	return g.passthrough(ctx, "weather", http.MethodGet, []string{"api", "weather", "recommendations"}, q)
}

// passthrough performs a bodiless request and returns the 2xx JSON body as is.
func (g *HTTPGateway) passthrough(ctx context.Context, op, method string, path []string, query url.Values) (json.RawMessage, error) {
	req, err := g.newRequest(ctx, op, method, path, query, nil)
	if err != nil {
		return nil, err
	}
	var out json.RawMessage
	if err := g.do(req, op, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, closet.NewError(closet.KindServer, op, "malformed response", fmt.Errorf("empty body"))
	}
	return out, nil
}

func (g *HTTPGateway) doJSON(ctx context.Context, op, method string, path []string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", op, err)
	}
	req, err := g.newRequest(ctx, op, method, path, nil, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(req, op, out)
}

// newRequest builds a request with the common headers. path elements must
// already be escaped.
func (g *HTTPGateway) newRequest(ctx context.Context, op, method string, path []string, query url.Values, body io.Reader) (*http.Request, error) {
	u := g.baseURL.JoinPath(path...)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", g.idgen.New())
	if token := g.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do performs one round trip and decodes a 2xx JSON body into out.
func (g *HTTPGateway) do(req *http.Request, op string, out any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(req.Context()); err != nil {
			return transportError(op, err)
		}
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("api request failed",
			"method", req.Method, "path", req.URL.Path,
			"request_id", req.Header.Get("X-Request-ID"), "error", err)
		return transportError(op, err)
	}
	defer resp.Body.Close()

	g.logger.Debug("api request",
		"method", req.Method, "path", req.URL.Path, "status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"), "duration", time.Since(start).Truncate(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(op, resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return closet.NewError(closet.KindServer, op, "malformed response", err)
	}
	return nil
}

// encodeUpload builds the multipart body: a "file" part typed with the
// sniffed MIME plus any non-empty metadata fields.
func encodeUpload(image []byte, info *imaging.Info, meta model.ItemMetadata) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="item.%s"`, extensionFor(info.Format)))
	h.Set("Content-Type", info.MIME)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", err
	}

	fields := []struct{ name, value string }{
		{"category", meta.Category},
		{"color", meta.Color},
		{"brand", meta.Brand},
		{"notes", meta.Notes},
	}
	for _, f := range fields {
		if f.value == "" {
			continue
		}
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func extensionFor(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}

func setIf(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}
