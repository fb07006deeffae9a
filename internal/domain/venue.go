package domain

import (
	"time"

	"github.com/govalues/decimal"
)

// Venue is a bar, restaurant or club that sells menu items.
type Venue struct {
	ID        string
	Name      string
	Location  Location
	Approved  bool
	CreatedAt time.Time
}

// MenuItem is something a venue sells. SizePrices overrides Price for a named size.
type MenuItem struct {
	ID         string
	VenueID    string
	Name       string
	Price      decimal.Decimal
	SizePrices map[string]decimal.Decimal
	Available  bool
}

// PriceFor returns the unit price for the given size.
func (m MenuItem) PriceFor(size string) (decimal.Decimal, bool) {
	if size == "" {
		return m.Price, true
	}
	p, ok := m.SizePrices[size]
	return p, ok
}

// Menu is the list of items offered by one venue.
type Menu struct {
	VenueID string
	Items   []MenuItem
}

// Item looks up a menu item by ID.
func (m Menu) Item(id string) (MenuItem, bool) {
	for _, item := range m.Items {
		if item.ID == id {
			return item, true
		}
	}
	return MenuItem{}, false
}
