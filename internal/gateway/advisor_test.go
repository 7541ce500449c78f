package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"testing"

	"github.com/go-chi/chi/v5"

	"closet-go/internal/closet"
	"closet-go/internal/model"
	"closet-go/internal/testutil"
)

func TestHTTPGateway_Advisor(t *testing.T) {
	t.Parallel()

	type seen struct {
		method string
		query  url.Values
		auth   string
		body   int
	}
	calls := make(chan seen, 3)
	record := func(reply string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			data, _ := io.ReadAll(r.Body)
			calls <- seen{method: r.Method, query: r.URL.Query(), auth: r.Header.Get("Authorization"), body: len(data)}
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, reply)
		}
	}

	r := chi.NewRouter()
	r.Post("/api/recommendations/outfits", record(`{"success":true,"recommendations":{"outfits":[]}}`))
	r.Get("/api/recommendations/closet-analysis", record(`{"success":true,"analysis":{"missing_essentials":["Shoes"]}}`))
	r.Get("/api/weather/recommendations", record(`{"success":true,"location":"Oslo"}`))
	gw := newTestGateway(t, r, HTTPOptions{})
	ctx := context.Background()

	t.Run("outfits", func(t *testing.T) {
		raw, err := gw.RecommendOutfits(ctx, closet.OutfitRequest{Occasion: "work", StylePreference: "minimal"})
		if err != nil {
			t.Fatalf("RecommendOutfits() error = %v", err)
		}
		if string(raw) != `{"success":true,"recommendations":{"outfits":[]}}` {
			t.Errorf("body = %s, want server body untouched", raw)
		}
		got := <-calls
		if got.method != http.MethodPost || got.body != 0 {
			t.Errorf("request = %s with %d body bytes, want empty POST", got.method, got.body)
		}
		if got.query.Get("occasion") != "work" || got.query.Get("style_preference") != "minimal" || got.query.Has("weather") {
			t.Errorf("query = %v", got.query)
		}
		if got.auth != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got.auth)
		}
	})

	t.Run("analyze", func(t *testing.T) {
		raw, err := gw.AnalyzeCloset(ctx)
		if err != nil {
			t.Fatalf("AnalyzeCloset() error = %v", err)
		}
		var body struct {
			Analysis struct {
				Missing []string `json:"missing_essentials"`
			} `json:"analysis"`
		}
		if err := json.Unmarshal(raw, &body); err != nil || !slices.Equal(body.Analysis.Missing, []string{"Shoes"}) {
			t.Errorf("body = %s (err %v)", raw, err)
		}
		<-calls
	})

	t.Run("weather without location", func(t *testing.T) {
		if _, err := gw.WeatherRecommendations(ctx, ""); err != nil {
			t.Fatalf("WeatherRecommendations() error = %v", err)
		}
		if got := <-calls; len(got.query) != 0 {
			t.Errorf("query = %v, want none", got.query)
		}
	})
}

func TestHTTPGateway_AdvisorErrors(t *testing.T) {
	t.Parallel()

	const noItems = "No clothing items found. Please add items to your closet first."
	tests := []struct {
		name       string
		status     int
		body       string
		call       func(*HTTPGateway) error
		wantKind   closet.Kind
		wantDetail string
	}{
		{
			name: "outfits with empty closet", status: 404, body: `{"detail":"` + noItems + `"}`,
			call: func(gw *HTTPGateway) error {
				_, err := gw.RecommendOutfits(context.Background(), closet.OutfitRequest{})
				return err
			},
			wantKind: closet.KindNotFound, wantDetail: noItems,
		},
		{
			name: "analysis with empty closet", status: 404, body: `{"detail":"` + noItems + `"}`,
			call: func(gw *HTTPGateway) error {
				_, err := gw.AnalyzeCloset(context.Background())
				return err
			},
			wantKind: closet.KindNotFound, wantDetail: noItems,
		},
		{
			name: "weather failure", status: 500, body: `{"detail":"Failed to get weather recommendations: timeout"}`,
			call: func(gw *HTTPGateway) error {
				_, err := gw.WeatherRecommendations(context.Background(), "Oslo")
				return err
			},
			wantKind: closet.KindServer, wantDetail: "Failed to get weather recommendations: timeout",
		},
		{
			name: "signed out", status: 401, body: `{"detail":"Not authenticated"}`,
			call: func(gw *HTTPGateway) error {
				_, err := gw.AnalyzeCloset(context.Background())
				return err
			},
			wantKind: closet.KindAuth, wantDetail: "Not authenticated",
		},
		{
			name: "empty success body", status: 200, body: ``,
			call: func(gw *HTTPGateway) error {
				_, err := gw.WeatherRecommendations(context.Background(), "")
				return err
			},
			wantKind: closet.KindServer, wantDetail: "malformed response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			reply := func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}
			r := chi.NewRouter()
			r.Post("/api/recommendations/outfits", reply)
			r.Get("/api/recommendations/closet-analysis", reply)
			r.Get("/api/weather/recommendations", reply)
			gw := newTestGateway(t, r, HTTPOptions{})

			err := tt.call(gw)
			if got := closet.KindOf(err); got != tt.wantKind {
				t.Fatalf("kind = %v, want %v (err %v)", got, tt.wantKind, err)
			}
			if got := closet.DetailOf(err); got != tt.wantDetail {
				t.Errorf("detail = %q, want %q", got, tt.wantDetail)
			}
		})
	}
}

func TestMemoryGateway_Advisor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("empty closet is not found", func(t *testing.T) {
		m := newMemory(testutil.FixedClock())
		signedIn(t, m, "a@example.com")

		if _, err := m.RecommendOutfits(ctx, closet.OutfitRequest{}); !errors.Is(err, closet.ErrNotFound) {
			t.Errorf("RecommendOutfits() error = %v, want NotFoundError", err)
		}
		if _, err := m.AnalyzeCloset(ctx); !errors.Is(err, closet.ErrNotFound) {
			t.Errorf("AnalyzeCloset() error = %v, want NotFoundError", err)
		}
		if _, err := m.WeatherRecommendations(ctx, "Oslo"); err != nil {
			t.Errorf("WeatherRecommendations() error = %v, want nil without items", err)
		}
	})

	t.Run("requires a token", func(t *testing.T) {
		m := newMemory(testutil.FixedClock())
		if _, err := m.WeatherRecommendations(ctx, ""); !errors.Is(err, closet.ErrAuth) {
			t.Errorf("WeatherRecommendations() error = %v, want AuthError", err)
		}
	})

	t.Run("outfits and analysis", func(t *testing.T) {
		m := newMemory(testutil.FixedClock())
		res := signedIn(t, m, "a@example.com")
		m.Seed(
			model.Item{ID: "1", UserID: res.UserID, Category: "Shirt", Color: "Blue"},
			model.Item{ID: "2", UserID: res.UserID, Category: "Pants", Brand: "Acme"},
			model.Item{ID: "3", UserID: res.UserID, Category: "Shirt", Color: "White"},
			model.Item{ID: "4", UserID: "someone-else", Category: "Shoes"},
		)

		raw, err := m.RecommendOutfits(ctx, closet.OutfitRequest{Occasion: "work"})
		if err != nil {
			t.Fatalf("RecommendOutfits() error = %v", err)
		}
		var outfits struct {
			Recommendations struct {
				Outfits []struct {
					Items []string `json:"items"`
				} `json:"outfits"`
			} `json:"recommendations"`
			Context struct {
				Occasion   *string `json:"occasion"`
				Weather    *string `json:"weather"`
				ItemsCount int     `json:"items_count"`
			} `json:"context"`
		}
		if err := json.Unmarshal(raw, &outfits); err != nil {
			t.Fatalf("decoding outfits: %v", err)
		}
		got := outfits.Recommendations.Outfits
		if len(got) != 2 {
			t.Fatalf("outfits = %+v, want 2", got)
		}
		if !slices.Equal(got[0].Items, []string{"Shirt in White", "Pants by Acme"}) {
			t.Errorf("first outfit = %v", got[0].Items)
		}
		if !slices.Equal(got[1].Items, []string{"Shirt in Blue"}) {
			t.Errorf("second outfit = %v", got[1].Items)
		}
		if outfits.Context.ItemsCount != 3 || outfits.Context.Occasion == nil || *outfits.Context.Occasion != "work" || outfits.Context.Weather != nil {
			t.Errorf("context = %+v", outfits.Context)
		}

		raw, err = m.AnalyzeCloset(ctx)
		if err != nil {
			t.Fatalf("AnalyzeCloset() error = %v", err)
		}
		var analysis struct {
			Analysis struct {
				Missing []string       `json:"missing_essentials"`
				Counts  map[string]int `json:"category_counts"`
			} `json:"analysis"`
		}
		if err := json.Unmarshal(raw, &analysis); err != nil {
			t.Fatalf("decoding analysis: %v", err)
		}
		if !slices.Equal(analysis.Analysis.Missing, []string{"Shoes", "Jacket"}) {
			t.Errorf("missing = %v, want [Shoes Jacket]", analysis.Analysis.Missing)
		}
		if analysis.Analysis.Counts["Shirt"] != 2 || analysis.Analysis.Counts["Pants"] != 1 {
			t.Errorf("counts = %v", analysis.Analysis.Counts)
		}
	})
}
