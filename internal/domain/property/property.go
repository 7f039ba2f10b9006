package property

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrIDRequired    = errors.New("property: id is required")
	ErrOwnerRequired = errors.New("property: owner is required")
	ErrTitleRequired = errors.New("property: title is required")
	ErrNotFound      = errors.New("property: not found")
)

type ID string

// Property is a published classified listing. Threads reference properties
// only through the denormalized snapshot (id, title, cover image), so this
// stays deliberately small.
type Property struct {
	ID         ID
	OwnerID    string
	Title      string
	City       string
	PriceCents int64
	CoverURL   string
	CreatedAt  time.Time
}

type Repository interface {
	ByID(ctx context.Context, id ID) (*Property, error)
	List(ctx context.Context) ([]*Property, error)
	Save(ctx context.Context, p *Property) error
}

type CreateParams struct {
	ID         ID
	OwnerID    string
	Title      string
	City       string
	PriceCents int64
	CoverURL   string
	Now        time.Time
}

func New(params CreateParams) (*Property, error) {
	id := strings.TrimSpace(string(params.ID))
	if id == "" {
		return nil, ErrIDRequired
	}
	owner := strings.TrimSpace(params.OwnerID)
	if owner == "" {
		return nil, ErrOwnerRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	now := params.Now
	if now.IsZero() {
		now = time.Now()
	}
	return &Property{
		ID:         ID(id),
		OwnerID:    owner,
		Title:      title,
		City:       strings.TrimSpace(params.City),
		PriceCents: params.PriceCents,
		CoverURL:   strings.TrimSpace(params.CoverURL),
		CreatedAt:  now.UTC(),
	}, nil
}
