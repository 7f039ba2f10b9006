package dto

import (
	"time"

	"arrienda/internal/domain/property"
)

// PropertySummary is one directory row.
type PropertySummary struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Title      string    `json:"title"`
	City       string    `json:"city,omitempty"`
	PriceCents int64     `json:"price_cents"`
	CoverURL   string    `json:"cover_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// PropertyList is the directory collection.
type PropertyList struct {
	Items []PropertySummary `json:"items"`
	Total int               `json:"total"`
}

// PropertyFromDomain maps a listing into its transport shape.
func PropertyFromDomain(p *property.Property) PropertySummary {
	return PropertySummary{
		ID:         string(p.ID),
		OwnerID:    p.OwnerID,
		Title:      p.Title,
		City:       p.City,
		PriceCents: p.PriceCents,
		CoverURL:   p.CoverURL,
		CreatedAt:  p.CreatedAt,
	}
}
