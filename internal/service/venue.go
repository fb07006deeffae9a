package service

import (
	"context"
	"fmt"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/redis"
	"jointvibe/internal/repository"
	"jointvibe/internal/repository/gateway"
)

// VenueService handles venue registration, moderation and check-in.
type VenueService struct {
	b                   backend.Backend
	venueRepo           repository.VenueRepository
	sessionStore        redis.SessionStoreInterface
	notificationService *NotificationService
	logger              *zap.Logger
}

// NewVenueService creates a new VenueService.
func NewVenueService(
	b backend.Backend,
	venueRepo repository.VenueRepository,
	sessionStore redis.SessionStoreInterface,
	notificationService *NotificationService,
	logger *zap.Logger,
) *VenueService {
	return &VenueService{
		b:                   b,
		venueRepo:           venueRepo,
		sessionStore:        sessionStore,
		notificationService: notificationService,
		logger:              logger,
	}
}

// CreateVenueRequest contains the parameters for registering a venue.
type CreateVenueRequest struct {
	Name     string
	Location domain.Location
}

// CreateVenue registers an unapproved venue together with its wallet.
func (s *VenueService) CreateVenue(ctx context.Context, req CreateVenueRequest) (*domain.Venue, error) {
	if req.Name == "" {
		return nil, ErrInvalidName
	}
	if !req.Location.Valid() {
		return nil, domain.ErrInvalidLocation
	}

	venue := &domain.Venue{Name: req.Name, Location: req.Location}
	err := s.b.WithinTx(ctx, func(tx backend.Backend) error {
		if err := gateway.NewVenueRepository(tx).Create(ctx, venue); err != nil {
			return fmt.Errorf("create venue: %w", err)
		}
		return gateway.NewWalletRepository(tx).Create(ctx, &domain.Wallet{
			OwnerType:    domain.OwnerVenue,
			OwnerID:      venue.ID,
			TokenBalance: decimal.Zero,
			USDBalance:   domain.RoundMoney(decimal.Zero),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("venue registered", zap.String("venue_id", venue.ID), zap.String("name", venue.Name))
	return venue, nil
}

// GetVenue retrieves a venue by ID.
func (s *VenueService) GetVenue(ctx context.Context, venueID string) (*domain.Venue, error) {
	if venueID == "" {
		return nil, ErrInvalidVenueID
	}
	return s.venueRepo.GetByID(ctx, venueID)
}

// ListVenues lists venues; approvedOnly hides those awaiting moderation.
func (s *VenueService) ListVenues(ctx context.Context, approvedOnly bool) ([]*domain.Venue, error) {
	return s.venueRepo.List(ctx, approvedOnly)
}

// ApproveVenue lets a venue start taking orders.
func (s *VenueService) ApproveVenue(ctx context.Context, venueID string) (*domain.Venue, error) {
	if venueID == "" {
		return nil, ErrInvalidVenueID
	}
	if err := s.venueRepo.SetApproved(ctx, venueID, true); err != nil {
		return nil, err
	}

	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	s.notificationService.NotifyVenueApproved(ctx, venue)
	return venue, nil
}

// CheckIn remembers that the user is at the venue.
func (s *VenueService) CheckIn(ctx context.Context, userID, venueID string) (*domain.Venue, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if venueID == "" {
		return nil, ErrInvalidVenueID
	}

	venue, err := s.venueRepo.GetByID(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !venue.Approved {
		return nil, ErrVenueNotApproved
	}
	if err := s.sessionStore.SaveVenue(ctx, userID, venueID); err != nil {
		return nil, fmt.Errorf("save check-in: %w", err)
	}
	return venue, nil
}

// CurrentVenue returns the venue the user is checked in at.
func (s *VenueService) CurrentVenue(ctx context.Context, userID string) (*domain.Venue, error) {
	if userID == "" {
		return nil, ErrInvalidUserID
	}

	venueID, err := s.sessionStore.LoadVenue(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load check-in: %w", err)
	}
	if venueID == "" {
		return nil, repository.ErrNotFound
	}
	return s.venueRepo.GetByID(ctx, venueID)
}

// CheckOut forgets the user's check-in.
func (s *VenueService) CheckOut(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidUserID
	}
	return s.sessionStore.ClearVenue(ctx, userID)
}
