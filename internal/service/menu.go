package service

import (
	"context"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"jointvibe/internal/domain"
	"jointvibe/internal/redis"
	"jointvibe/internal/repository"
)

// MenuService serves venue menus through the menu cache.
type MenuService struct {
	menuRepo  repository.MenuRepository
	venueRepo repository.VenueRepository
	menuCache redis.MenuCacheInterface
	logger    *zap.Logger
}

// NewMenuService creates a new MenuService. menuCache may be nil.
func NewMenuService(
	menuRepo repository.MenuRepository,
	venueRepo repository.VenueRepository,
	menuCache redis.MenuCacheInterface,
	logger *zap.Logger,
) *MenuService {
	return &MenuService{
		menuRepo:  menuRepo,
		venueRepo: venueRepo,
		menuCache: menuCache,
		logger:    logger,
	}
}

// GetMenu returns the menu of a venue, from cache when possible. Cache
// failures fall back to the repository.
func (s *MenuService) GetMenu(ctx context.Context, venueID string) (*domain.Menu, error) {
	if venueID == "" {
		return nil, ErrInvalidVenueID
	}

	if s.menuCache != nil {
		menu, err := s.menuCache.LoadMenu(ctx, venueID)
		if err != nil {
			s.logger.Warn("menu cache load failed", zap.String("venue_id", venueID), zap.Error(err))
		} else if menu != nil {
			return menu, nil
		}
	}

	if _, err := s.venueRepo.GetByID(ctx, venueID); err != nil {
		return nil, err
	}
	items, err := s.menuRepo.ListByVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	menu := &domain.Menu{VenueID: venueID, Items: items}

	if s.menuCache != nil {
		if err := s.menuCache.SaveMenu(ctx, menu); err != nil {
			s.logger.Warn("menu cache save failed", zap.String("venue_id", venueID), zap.Error(err))
		}
	}
	return menu, nil
}

// UpsertMenuItemRequest contains the parameters for creating or editing a menu item.
type UpsertMenuItemRequest struct {
	ID         string // empty creates a new item
	VenueID    string
	Name       string
	Price      decimal.Decimal
	SizePrices map[string]decimal.Decimal
	Available  bool
}

// UpsertItem creates or replaces a menu item and invalidates the cached menu.
func (s *MenuService) UpsertItem(ctx context.Context, req UpsertMenuItemRequest) (*domain.MenuItem, error) {
	if req.VenueID == "" {
		return nil, ErrInvalidVenueID
	}
	if req.Name == "" {
		return nil, ErrInvalidName
	}
	if req.Price.IsNeg() {
		return nil, domain.ErrInvalidPrice
	}
	for _, p := range req.SizePrices {
		if p.IsNeg() {
			return nil, domain.ErrInvalidPrice
		}
	}

	if _, err := s.venueRepo.GetByID(ctx, req.VenueID); err != nil {
		return nil, err
	}

	item := &domain.MenuItem{
		ID:         req.ID,
		VenueID:    req.VenueID,
		Name:       req.Name,
		Price:      domain.RoundMoney(req.Price),
		SizePrices: req.SizePrices,
		Available:  req.Available,
	}
	if err := s.menuRepo.Upsert(ctx, item); err != nil {
		return nil, err
	}

	if s.menuCache != nil {
		if err := s.menuCache.InvalidateMenu(ctx, req.VenueID); err != nil {
			s.logger.Warn("menu cache invalidation failed", zap.String("venue_id", req.VenueID), zap.Error(err))
		}
	}
	return item, nil
}
