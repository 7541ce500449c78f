package closet

import (
	"strings"

	"closet-go/internal/model"
)

// View is a filtered projection of the item collection.
type View struct {
	Items []model.Item
	// Categories and Colors are the distinct non-empty values across the
	// whole collection, in order of first occurrence.
	Categories []string
	Colors     []string
}

// Project filters items by criteria. It never modifies items and keeps
// no state; the same inputs always produce the same View.
//
// The query matches case-insensitively as a substring of category, color,
// brand or notes. Category and color must match exactly. All active
// predicates must hold.
func Project(items []model.Item, criteria model.FilterCriteria) View {
	query := strings.ToLower(criteria.Query)

	view := View{
		Items:      make([]model.Item, 0, len(items)),
		Categories: distinct(items, func(it *model.Item) string { return it.Category }),
		Colors:     distinct(items, func(it *model.Item) string { return it.Color }),
	}

	for i := range items {
		it := &items[i]
		if query != "" && !matchesQuery(it, query) {
			continue
		}
		if criteria.Category != "" && it.Category != criteria.Category {
			continue
		}
		if criteria.Color != "" && it.Color != criteria.Color {
			continue
		}
		if criteria.FavoritesOnly && !it.IsFavorite {
			continue
		}
		view.Items = append(view.Items, cloneItem(*it))
	}

	return view
}

// matchesQuery expects query already lowercased.
func matchesQuery(it *model.Item, query string) bool {
	for _, field := range []string{it.Category, it.Color, it.Brand, it.Notes} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func distinct(items []model.Item, field func(*model.Item) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := range items {
		v := field(&items[i])
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// cloneItem copies it, including the UpdatedAt pointee.
func cloneItem(it model.Item) model.Item {
	if it.UpdatedAt != nil {
		u := *it.UpdatedAt
		it.UpdatedAt = &u
	}
	return it
}

func cloneItems(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i := range items {
		out[i] = cloneItem(items[i])
	}
	return out
}
