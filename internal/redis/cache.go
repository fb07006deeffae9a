package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/govalues/decimal"
	"github.com/redis/go-redis/v9"

	"jointvibe/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	DriverCacheTTL = 30 * time.Second // Driver status can change frequently
	MenuCacheTTL   = 10 * time.Minute // Menus change rarely and are invalidated on write
)

// Key prefixes
const (
	driverCachePrefix = "cache:driver:"
	menuCachePrefix   = "cache:menu:"
)

// CachedDriver represents a cached driver entity.
type CachedDriver struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type cachedMenuItem struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Price      string            `json:"price"`
	SizePrices map[string]string `json:"size_prices,omitempty"`
	Available  bool              `json:"available"`
}

type cachedMenu struct {
	VenueID string           `json:"venue_id"`
	Items   []cachedMenuItem `json:"items"`
}

// GetDriver retrieves a driver from cache.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	data, err := s.client.Get(ctx, driverCachePrefix+driverID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, driverCachePrefix+driver.ID, data, DriverCacheTTL).Err()
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	return s.client.Del(ctx, driverCachePrefix+driverID).Err()
}

// LoadMenu retrieves a venue menu from cache. A miss returns nil, nil.
func (s *CacheStore) LoadMenu(ctx context.Context, venueID string) (*domain.Menu, error) {
	data, err := s.client.Get(ctx, menuCachePrefix+venueID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var cached cachedMenu
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return cached.toDomain()
}

// SaveMenu stores a venue menu in cache.
func (s *CacheStore) SaveMenu(ctx context.Context, menu *domain.Menu) error {
	cached := cachedMenu{VenueID: menu.VenueID, Items: make([]cachedMenuItem, 0, len(menu.Items))}
	for _, item := range menu.Items {
		ci := cachedMenuItem{
			ID:        item.ID,
			Name:      item.Name,
			Price:     item.Price.String(),
			Available: item.Available,
		}
		if len(item.SizePrices) > 0 {
			ci.SizePrices = make(map[string]string, len(item.SizePrices))
			for size, p := range item.SizePrices {
				ci.SizePrices[size] = p.String()
			}
		}
		cached.Items = append(cached.Items, ci)
	}

	data, err := json.Marshal(cached)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, menuCachePrefix+menu.VenueID, data, MenuCacheTTL).Err()
}

// InvalidateMenu removes a venue menu from cache.
func (s *CacheStore) InvalidateMenu(ctx context.Context, venueID string) error {
	return s.client.Del(ctx, menuCachePrefix+venueID).Err()
}

func (c cachedMenu) toDomain() (*domain.Menu, error) {
	menu := &domain.Menu{VenueID: c.VenueID, Items: make([]domain.MenuItem, 0, len(c.Items))}
	for _, ci := range c.Items {
		price, err := decimal.Parse(ci.Price)
		if err != nil {
			return nil, fmt.Errorf("cached price of %s: %w", ci.ID, err)
		}
		item := domain.MenuItem{
			ID:        ci.ID,
			VenueID:   c.VenueID,
			Name:      ci.Name,
			Price:     price,
			Available: ci.Available,
		}
		if len(ci.SizePrices) > 0 {
			item.SizePrices = make(map[string]decimal.Decimal, len(ci.SizePrices))
			for size, s := range ci.SizePrices {
				p, err := decimal.Parse(s)
				if err != nil {
					return nil, fmt.Errorf("cached size %s of %s: %w", size, ci.ID, err)
				}
				item.SizePrices[size] = p
			}
		}
		menu.Items = append(menu.Items, item)
	}
	return menu, nil
}
