package testutil

import (
	"time"

	"closet-go/internal/model"
)

// SampleItems returns a blue shirt (id "1") and black pants (id "2",
// favorite), newest first.
func SampleItems() []model.Item {
	created := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	return []model.Item{
		{
			ID:        "1",
			UserID:    DefaultUserID,
			ImageURL:  "https://img.example.com/1.jpg",
			Category:  "Shirt",
			Color:     "Blue",
			Brand:     "Acme",
			Notes:     "linen, summer",
			CreatedAt: model.NewTimestamp(created.Add(time.Hour)),
		},
		{
			ID:         "2",
			UserID:     DefaultUserID,
			ImageURL:   "https://img.example.com/2.jpg",
			Category:   "Pants",
			Color:      "Black",
			Brand:      "Northwind",
			IsFavorite: true,
			CreatedAt:  model.NewTimestamp(created),
		},
	}
}

// Item builds a minimal item.
func Item(id, category, color string, favorite bool) model.Item {
	return model.Item{
		ID:         id,
		UserID:     DefaultUserID,
		Category:   category,
		Color:      color,
		IsFavorite: favorite,
	}
}
