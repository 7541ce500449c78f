package closet_test

import (
	"slices"
	"testing"

	"closet-go/internal/closet"
	"closet-go/internal/model"
	"closet-go/internal/testutil"
)

func ids(items []model.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestProject_Filters(t *testing.T) {
	t.Parallel()

	items := testutil.SampleItems()

	tests := []struct {
		name     string
		criteria model.FilterCriteria
		want     []string
	}{
		{name: "no criteria", criteria: model.FilterCriteria{}, want: []string{"1", "2"}},
		{name: "query matches category case-insensitively", criteria: model.FilterCriteria{Query: "shirt"}, want: []string{"1"}},
		{name: "favorites only", criteria: model.FilterCriteria{FavoritesOnly: true}, want: []string{"2"}},
		{name: "query matches brand", criteria: model.FilterCriteria{Query: "NORTH"}, want: []string{"2"}},
		{name: "query matches notes", criteria: model.FilterCriteria{Query: "linen"}, want: []string{"1"}},
		{name: "query matches color", criteria: model.FilterCriteria{Query: "blu"}, want: []string{"1"}},
		{name: "category exact", criteria: model.FilterCriteria{Category: "Pants"}, want: []string{"2"}},
		{name: "category is case-sensitive", criteria: model.FilterCriteria{Category: "pants"}, want: []string{}},
		{name: "color exact", criteria: model.FilterCriteria{Color: "Blue"}, want: []string{"1"}},
		{name: "all predicates must hold", criteria: model.FilterCriteria{Category: "Shirt", FavoritesOnly: true}, want: []string{}},
		{name: "no match", criteria: model.FilterCriteria{Query: "scarf"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := closet.Project(items, tt.criteria)
			if !slices.Equal(ids(got.Items), tt.want) {
				t.Errorf("Project() ids = %v, want %v", ids(got.Items), tt.want)
			}
		})
	}
}

func TestProject_ResultIsSubsetInOrder(t *testing.T) {
	t.Parallel()

	items := []model.Item{
		testutil.Item("a", "Shirt", "Red", true),
		testutil.Item("b", "Pants", "Red", false),
		testutil.Item("c", "Shirt", "Green", true),
		testutil.Item("d", "Shirt", "Red", true),
	}

	got := closet.Project(items, model.FilterCriteria{Category: "Shirt", FavoritesOnly: true})
	want := []string{"a", "c", "d"}
	if !slices.Equal(ids(got.Items), want) {
		t.Errorf("Project() ids = %v, want %v", ids(got.Items), want)
	}
}

func TestProject_Deterministic(t *testing.T) {
	t.Parallel()

	items := testutil.SampleItems()
	criteria := model.FilterCriteria{Query: "a"}

	first := closet.Project(items, criteria)
	second := closet.Project(items, criteria)
	if !slices.Equal(ids(first.Items), ids(second.Items)) {
		t.Errorf("Project() not deterministic: %v vs %v", ids(first.Items), ids(second.Items))
	}
}

func TestProject_DoesNotModifyInput(t *testing.T) {
	t.Parallel()

	items := testutil.SampleItems()
	before := testutil.SampleItems()

	view := closet.Project(items, model.FilterCriteria{})
	view.Items[0].Category = "Changed"
	view.Items[1].IsFavorite = false

	for i := range items {
		if items[i] != before[i] {
			t.Errorf("input item %d modified: %+v", i, items[i])
		}
	}
}

func TestProject_Facets(t *testing.T) {
	t.Parallel()

	items := []model.Item{
		testutil.Item("a", "Shirt", "Red", false),
		testutil.Item("b", "Pants", "", false),
		testutil.Item("c", "Shirt", "Green", true),
		testutil.Item("d", "", "Red", false),
	}

	// Facets describe the whole collection, not the filtered subset.
	view := closet.Project(items, model.FilterCriteria{FavoritesOnly: true})

	if want := []string{"Shirt", "Pants"}; !slices.Equal(view.Categories, want) {
		t.Errorf("Categories = %v, want %v", view.Categories, want)
	}
	if want := []string{"Red", "Green"}; !slices.Equal(view.Colors, want) {
		t.Errorf("Colors = %v, want %v", view.Colors, want)
	}
}

func TestProject_Empty(t *testing.T) {
	t.Parallel()

	view := closet.Project(nil, model.FilterCriteria{Query: "x"})
	if view.Items == nil || len(view.Items) != 0 {
		t.Errorf("Items = %v, want empty non-nil slice", view.Items)
	}
	if len(view.Categories) != 0 || len(view.Colors) != 0 {
		t.Errorf("facets = %v/%v, want empty", view.Categories, view.Colors)
	}
}
