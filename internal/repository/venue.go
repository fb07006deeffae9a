package repository

import (
	"context"

	"jointvibe/internal/domain"
)

// VenueRepository defines the persistence operations for venues.
type VenueRepository interface {
	Create(ctx context.Context, venue *domain.Venue) error
	GetByID(ctx context.Context, id string) (*domain.Venue, error)

	// List retrieves venues; approvedOnly hides venues awaiting moderation.
	List(ctx context.Context, approvedOnly bool) ([]*domain.Venue, error)

	SetApproved(ctx context.Context, id string, approved bool) error
}

// MenuRepository defines the persistence operations for menu items.
type MenuRepository interface {
	// ListByVenue retrieves every item of a venue menu.
	ListByVenue(ctx context.Context, venueID string) ([]domain.MenuItem, error)

	// Upsert creates the item or replaces the stored one with the same ID.
	Upsert(ctx context.Context, item *domain.MenuItem) error
}
