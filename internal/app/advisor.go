package app

import (
	"context"
	"encoding/json"
	"errors"

	"closet-go/internal/closet"
)

// Outfits asks the server to combine the signed-in user's items into outfits.
func (a *ClosetApp) Outfits(ctx context.Context, req closet.OutfitRequest) (json.RawMessage, error) {
	return a.advise(ctx, "outfits", func(ctx context.Context) (json.RawMessage, error) {
		return a.gateway.RecommendOutfits(ctx, req)
	})
}

// Analyze asks the server which essentials the closet lacks.
func (a *ClosetApp) Analyze(ctx context.Context) (json.RawMessage, error) {
	return a.advise(ctx, "analyze", a.gateway.AnalyzeCloset)
}

// Weather asks the server for clothing advice for location ("" lets the
// server choose).
func (a *ClosetApp) Weather(ctx context.Context, location string) (json.RawMessage, error) {
	return a.advise(ctx, "weather", func(ctx context.Context) (json.RawMessage, error) {
		return a.gateway.WeatherRecommendations(ctx, location)
	})
}

// advise runs one advisor call for the active session. A rejected token ends
// the session, as it does for item calls.
func (a *ClosetApp) advise(ctx context.Context, op string, call func(context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if !a.session.Active() {
		return nil, closet.ErrNoSession
	}
	out, err := call(ctx)
	if err == nil {
		return out, nil
	}
	a.logger.Warn("advisor request failed", "op", op, "kind", closet.KindOf(err).String(), "error", err)
	if errors.Is(err, closet.ErrAuth) {
		if endErr := a.session.Expire(context.WithoutCancel(ctx)); endErr != nil {
			a.logger.Error("expiring session failed", "error", endErr)
		}
	}
	return nil, err
}
