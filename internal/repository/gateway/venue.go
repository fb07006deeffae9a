package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/govalues/decimal"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
)

// VenueRepository is a backend implementation of repository.VenueRepository.
type VenueRepository struct {
	b backend.Backend
}

var _ repository.VenueRepository = (*VenueRepository)(nil)

// NewVenueRepository creates a venue repository.
func NewVenueRepository(b backend.Backend) *VenueRepository {
	return &VenueRepository{b: b}
}

func (r *VenueRepository) Create(ctx context.Context, v *domain.Venue) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	_, err := r.b.Insert(ctx, tableVenues, backend.Record{
		"id":         v.ID,
		"name":       v.Name,
		"address":    v.Location.Address,
		"lat":        v.Location.Lat,
		"lng":        v.Location.Lng,
		"approved":   v.Approved,
		"created_at": v.CreatedAt,
	})
	return mapError(err)
}

func (r *VenueRepository) GetByID(ctx context.Context, id string) (*domain.Venue, error) {
	rec, err := first(r.b.Query(ctx, tableVenues, backend.Filter{"id": id}))
	if err != nil {
		return nil, err
	}
	return venueFromRecord(rec), nil
}

func (r *VenueRepository) List(ctx context.Context, approvedOnly bool) ([]*domain.Venue, error) {
	filter := backend.Filter{}
	if approvedOnly {
		filter["approved"] = true
	}
	rows, err := r.b.Query(ctx, tableVenues, filter, backend.OrderBy("name", false))
	if err != nil {
		return nil, err
	}

	venues := make([]*domain.Venue, 0, len(rows))
	for _, row := range rows {
		venues = append(venues, venueFromRecord(row))
	}
	return venues, nil
}

func (r *VenueRepository) SetApproved(ctx context.Context, id string, approved bool) error {
	_, err := r.b.Update(ctx, tableVenues, backend.Filter{"id": id}, backend.Record{"approved": approved})
	return mapError(err)
}

func venueFromRecord(rec backend.Record) *domain.Venue {
	return &domain.Venue{
		ID:   rec.String("id"),
		Name: rec.String("name"),
		Location: domain.Location{
			Lat:     rec.Float("lat"),
			Lng:     rec.Float("lng"),
			Address: rec.String("address"),
		},
		Approved:  rec.Bool("approved"),
		CreatedAt: rec.Time("created_at"),
	}
}

// MenuRepository is a backend implementation of repository.MenuRepository.
type MenuRepository struct {
	b backend.Backend
}

var _ repository.MenuRepository = (*MenuRepository)(nil)

// NewMenuRepository creates a menu repository.
func NewMenuRepository(b backend.Backend) *MenuRepository {
	return &MenuRepository{b: b}
}

func (r *MenuRepository) ListByVenue(ctx context.Context, venueID string) ([]domain.MenuItem, error) {
	rows, err := r.b.Query(ctx, tableMenuItems, backend.Filter{"venue_id": venueID}, backend.OrderBy("name", false))
	if err != nil {
		return nil, err
	}

	items := make([]domain.MenuItem, 0, len(rows))
	for _, row := range rows {
		item, err := menuItemFromRecord(row)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// Upsert inserts the item, or updates it when an item with the same ID exists.
func (r *MenuRepository) Upsert(ctx context.Context, item *domain.MenuItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	sizes, err := encodeSizePrices(item.SizePrices)
	if err != nil {
		return err
	}

	rec := backend.Record{
		"venue_id":    item.VenueID,
		"name":        item.Name,
		"price":       item.Price,
		"size_prices": sizes,
		"available":   item.Available,
		"updated_at":  now(),
	}

	return r.b.WithinTx(ctx, func(tx backend.Backend) error {
		existing, err := tx.Query(ctx, tableMenuItems, backend.Filter{"id": item.ID}, backend.ForUpdate())
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if existing[0].String("venue_id") != item.VenueID {
				return fmt.Errorf("menu item %s: %w", item.ID, repository.ErrConflict)
			}
			_, err = tx.Update(ctx, tableMenuItems, backend.Filter{"id": item.ID}, rec)
			return mapError(err)
		}
		rec["id"] = item.ID
		_, err = tx.Insert(ctx, tableMenuItems, rec)
		return mapError(err)
	})
}

func encodeSizePrices(prices map[string]decimal.Decimal) (any, error) {
	if len(prices) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(prices))
	for size, p := range prices {
		out[size] = p.String()
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode size prices: %w", err)
	}
	return string(data), nil
}

func menuItemFromRecord(rec backend.Record) (domain.MenuItem, error) {
	price, err := rec.Decimal("price")
	if err != nil {
		return domain.MenuItem{}, err
	}

	item := domain.MenuItem{
		ID:        rec.String("id"),
		VenueID:   rec.String("venue_id"),
		Name:      rec.String("name"),
		Price:     price,
		Available: rec.Bool("available"),
	}

	if raw := rec.String("size_prices"); raw != "" {
		var sizes map[string]string
		if err := json.Unmarshal([]byte(raw), &sizes); err != nil {
			return domain.MenuItem{}, fmt.Errorf("decode size prices of %s: %w", item.ID, err)
		}
		item.SizePrices = make(map[string]decimal.Decimal, len(sizes))
		for size, s := range sizes {
			p, err := decimal.Parse(s)
			if err != nil {
				return domain.MenuItem{}, fmt.Errorf("size %s of %s: %w", size, item.ID, err)
			}
			item.SizePrices[size] = p
		}
	}
	return item, nil
}
