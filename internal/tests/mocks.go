package tests

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/govalues/decimal"
	"go.uber.org/zap"

	"jointvibe/internal/backend"
	"jointvibe/internal/domain"
	"jointvibe/internal/realtime"
	"jointvibe/internal/redis"
	"jointvibe/internal/repository"
	"jointvibe/internal/repository/gateway"
	"jointvibe/internal/service"
)

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	CreateCallCount       int32
	UpdateStatusCallCount int32

	// Error injection
	CreateError       error
	UpdateStatusError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = driver
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if driver.ID == "" {
		driver.ID = "driver-" + driver.Phone
	}
	m.drivers[driver.ID] = driver
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByPhone(ctx context.Context, phone string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if d.Phone == phone {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) List(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		if status != "" && d.Status != status {
			continue
		}
		copy := *d
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockDriverRepository) UpdateStatus(ctx context.Context, id string, status domain.DriverStatus) error {
	atomic.AddInt32(&m.UpdateStatusCallCount, 1)
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Status = status
	return nil
}

// GetDriver returns driver for test assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

// ──────────────────────────────────────────────
// MOCK LOCATION STORE
// ──────────────────────────────────────────────

// MockLocationStore is a mock implementation of LocationStore.
type MockLocationStore struct {
	mu        sync.RWMutex
	locations []redis.DriverLocation

	// Counters
	UpdateLocationCallCount int32

	// Error injection
	UpdateLocationError    error
	FindNearbyDriversError error
}

// NewMockLocationStore creates a new mock location store.
func NewMockLocationStore() *MockLocationStore {
	return &MockLocationStore{
		locations: make([]redis.DriverLocation, 0),
	}
}

// AddDriverLocation adds a driver location to the mock store.
func (m *MockLocationStore) AddDriverLocation(loc redis.DriverLocation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locations = append(m.locations, loc)
}

func (m *MockLocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	atomic.AddInt32(&m.UpdateLocationCallCount, 1)
	if m.UpdateLocationError != nil {
		return m.UpdateLocationError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	// Update existing or add new.
	for i, loc := range m.locations {
		if loc.DriverID == driverID {
			m.locations[i].Lat = lat
			m.locations[i].Lng = lng
			return nil
		}
	}
	m.locations = append(m.locations, redis.DriverLocation{
		DriverID: driverID,
		Lat:      lat,
		Lng:      lng,
	})
	return nil
}

func (m *MockLocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]redis.DriverLocation, error) {
	if m.FindNearbyDriversError != nil {
		return nil, m.FindNearbyDriversError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Filter on the great-circle distance; the real store asks Redis GEOSEARCH.
	center := domain.Location{Lat: lat, Lng: lng}
	result := make([]redis.DriverLocation, 0, len(m.locations))
	for _, loc := range m.locations {
		d := domain.HaversineKm(center, domain.Location{Lat: loc.Lat, Lng: loc.Lng})
		if d <= radiusKm {
			loc.DistanceKm = d
			result = append(result, loc)
		}
	}
	return result, nil
}

func (m *MockLocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, loc := range m.locations {
		if loc.DriverID == driverID {
			m.locations = append(m.locations[:i], m.locations[i+1:]...)
			return nil
		}
	}
	return nil
}

// HasLocation checks if a driver location exists.
func (m *MockLocationStore) HasLocation(driverID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, loc := range m.locations {
		if loc.DriverID == driverID {
			return true
		}
	}
	return false
}

// ──────────────────────────────────────────────
// MOCK LOCK STORE
// ──────────────────────────────────────────────

// MockLockStore is a mock implementation of LockStore.
type MockLockStore struct {
	mu    sync.Mutex
	locks map[string]mockLock

	// Counters
	AcquireCallCount int32
	ReleaseCallCount int32

	// Error injection
	AcquireError error

	// Force lock failure
	ForceAcquireFailure bool
}

type mockLock struct {
	owner  string
	expiry time.Time
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{
		locks: make(map[string]mockLock),
	}
}

func (m *MockLockStore) AcquireDeliveryLock(ctx context.Context, deliveryID, owner string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	if m.ForceAcquireFailure {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := redis.DeliveryLockKey(deliveryID)
	if held, exists := m.locks[key]; exists && time.Now().Before(held.expiry) {
		return false, nil // Lock still held.
	}

	m.locks[key] = mockLock{owner: owner, expiry: time.Now().Add(ttl)}
	return true, nil
}

func (m *MockLockStore) ReleaseDeliveryLock(ctx context.Context, deliveryID, owner string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	key := redis.DeliveryLockKey(deliveryID)
	if held, exists := m.locks[key]; exists && held.owner == owner {
		delete(m.locks, key)
	}
	return nil
}

// IsLocked checks if a delivery is locked (for test assertions).
func (m *MockLockStore) IsLocked(deliveryID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	held, exists := m.locks[redis.DeliveryLockKey(deliveryID)]
	return exists && time.Now().Before(held.expiry)
}

// ──────────────────────────────────────────────
// MOCK DRIVER CACHE
// ──────────────────────────────────────────────

// MockDriverCache is an in-memory driver cache.
type MockDriverCache struct {
	mu      sync.Mutex
	drivers map[string]redis.CachedDriver

	InvalidateCallCount int32
}

// NewMockDriverCache creates an empty driver cache.
func NewMockDriverCache() *MockDriverCache {
	return &MockDriverCache{drivers: make(map[string]redis.CachedDriver)}
}

func (m *MockDriverCache) GetDriver(ctx context.Context, driverID string) (*redis.CachedDriver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (m *MockDriverCache) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ID] = *driver
	return nil
}

func (m *MockDriverCache) InvalidateDriver(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

// Cached returns the cached status of a driver, or "" on a miss.
func (m *MockDriverCache) Cached(driverID string) domain.DriverStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.DriverStatus(m.drivers[driverID].Status)
}

// ──────────────────────────────────────────────
// MOCK MENU CACHE AND SESSION STORE
// ──────────────────────────────────────────────

// MockMenuCache is a mock implementation of MenuCacheInterface.
type MockMenuCache struct {
	mu    sync.Mutex
	menus map[string]*domain.Menu

	LoadCallCount       int32
	SaveCallCount       int32
	InvalidateCallCount int32

	LoadError error
}

// NewMockMenuCache creates a new mock menu cache.
func NewMockMenuCache() *MockMenuCache {
	return &MockMenuCache{menus: make(map[string]*domain.Menu)}
}

func (m *MockMenuCache) LoadMenu(ctx context.Context, venueID string) (*domain.Menu, error) {
	atomic.AddInt32(&m.LoadCallCount, 1)
	if m.LoadError != nil {
		return nil, m.LoadError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.menus[venueID], nil
}

func (m *MockMenuCache) SaveMenu(ctx context.Context, menu *domain.Menu) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.menus[menu.VenueID] = menu
	return nil
}

func (m *MockMenuCache) InvalidateMenu(ctx context.Context, venueID string) error {
	atomic.AddInt32(&m.InvalidateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.menus, venueID)
	return nil
}

// Cached reports whether a menu is cached for the venue.
func (m *MockMenuCache) Cached(venueID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.menus[venueID]
	return ok
}

// MockSessionStore is a mock implementation of SessionStoreInterface.
type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]string
}

// NewMockSessionStore creates a new mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]string)}
}

func (m *MockSessionStore) LoadVenue(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID], nil
}

func (m *MockSessionStore) SaveVenue(ctx context.Context, userID, venueID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = venueID
	return nil
}

func (m *MockSessionStore) ClearVenue(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// ──────────────────────────────────────────────
// RECORDING SENDER
// ──────────────────────────────────────────────

// RecordingSender captures every notification it is asked to send.
type RecordingSender struct {
	mu   sync.Mutex
	sent []service.Notification
}

func (s *RecordingSender) Send(ctx context.Context, n service.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

// OfType returns the captured notifications of type t.
func (s *RecordingSender) OfType(t service.NotificationType) []service.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []service.Notification
	for _, n := range s.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// FAILING BACKEND
// ──────────────────────────────────────────────

var errInjected = errors.New("injected failure")

// FailingBackend wraps a Backend and fails inserts into FailTable, including
// inserts made inside transactions.
type FailingBackend struct {
	backend.Backend
	FailTable string
}

func (f *FailingBackend) Insert(ctx context.Context, table string, rec backend.Record) (backend.Record, error) {
	if table == f.FailTable {
		return nil, errInjected
	}
	return f.Backend.Insert(ctx, table, rec)
}

func (f *FailingBackend) WithinTx(ctx context.Context, fn func(tx backend.Backend) error) error {
	return f.Backend.WithinTx(ctx, func(tx backend.Backend) error {
		return fn(&FailingBackend{Backend: tx, FailTable: f.FailTable})
	})
}

// ──────────────────────────────────────────────
// TEST HARNESS
// ──────────────────────────────────────────────

// TokenRate is the USD value of one JV token in tests.
var TokenRate = decimal.MustParse("0.10")

// Harness wires every service on an in-memory backend.
type Harness struct {
	Backend *backend.Memory
	Hub     *realtime.MemoryHub

	Orders     *gateway.OrderRepository
	Deliveries *gateway.DeliveryRepository
	Venues     *gateway.VenueRepository
	Menus      *gateway.MenuRepository
	Drivers    *gateway.DriverRepository
	Wallets    *gateway.WalletRepository

	Locations   *MockLocationStore
	Locks       *MockLockStore
	DriverCache *MockDriverCache
	MenuCache   *MockMenuCache
	Sessions    *MockSessionStore
	Sent        *RecordingSender

	DriverService   *service.DriverService
	OrderService    *service.OrderService
	DeliveryService *service.DeliveryService
	VenueService    *service.VenueService
	MenuService     *service.MenuService
	WalletService   *service.WalletService
}

// NewHarness builds a harness. The hub is closed when the test ends.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	logger := zap.NewNop()
	hub := realtime.NewMemoryHub(logger)
	t.Cleanup(func() { _ = hub.Close() })

	registry := backend.NewRegistry()
	service.RegisterWalletFunctions(registry, TokenRate)
	b := backend.NewMemory(hub, registry)

	h := &Harness{
		Backend:     b,
		Hub:         hub,
		Orders:      gateway.NewOrderRepository(b),
		Deliveries:  gateway.NewDeliveryRepository(b),
		Venues:      gateway.NewVenueRepository(b),
		Menus:       gateway.NewMenuRepository(b),
		Drivers:     gateway.NewDriverRepository(b),
		Wallets:     gateway.NewWalletRepository(b),
		Locations:   NewMockLocationStore(),
		Locks:       NewMockLockStore(),
		DriverCache: NewMockDriverCache(),
		MenuCache:   NewMockMenuCache(),
		Sessions:    NewMockSessionStore(),
		Sent:        &RecordingSender{},
	}

	notifications := service.NewNotificationService(logger, h.Sent)
	h.MenuService = service.NewMenuService(h.Menus, h.Venues, h.MenuCache, logger)
	h.VenueService = service.NewVenueService(b, h.Venues, h.Sessions, notifications, logger)
	h.DriverService = service.NewDriverService(h.Locations, h.DriverCache, h.Drivers, logger)
	h.OrderService = service.NewOrderService(b, h.Orders, h.Venues, h.MenuService,
		h.DriverService, service.NewFareCalculator(domain.DefaultRateTable()), notifications,
		service.OrderConfig{TaxRate: decimal.MustParse("0.10"), DriverSearchRadiusKm: 5}, logger)
	h.DeliveryService = service.NewDeliveryService(b, h.Deliveries, h.Orders, h.Drivers, h.DriverService, h.Locks, notifications, logger)
	h.WalletService = service.NewWalletService(b, h.Wallets, notifications, logger)
	return h
}

// VenueLocation is where the harness venue is.
var VenueLocation = domain.Location{Lat: 40.7128, Lng: -74.0060, Address: "1 Bar St"}

// Dropoff is a delivery address about 1.1 km from the venue.
var Dropoff = domain.Location{Lat: 40.7228, Lng: -74.0060, Address: "9 Home Ave"}

// SeedVenue registers and approves a venue with a lager (pint 4.50, half 2.75)
// and fries (3.00). It returns the venue and the two menu item IDs.
func (h *Harness) SeedVenue(t *testing.T) (venue *domain.Venue, lagerID, friesID string) {
	t.Helper()
	ctx := context.Background()

	venue, err := h.VenueService.CreateVenue(ctx, service.CreateVenueRequest{Name: "Joint", Location: VenueLocation})
	if err != nil {
		t.Fatalf("create venue: %v", err)
	}
	if _, err := h.VenueService.ApproveVenue(ctx, venue.ID); err != nil {
		t.Fatalf("approve venue: %v", err)
	}

	lager, err := h.MenuService.UpsertItem(ctx, service.UpsertMenuItemRequest{
		VenueID: venue.ID,
		Name:    "Lager",
		Price:   decimal.MustParse("4.50"),
		SizePrices: map[string]decimal.Decimal{
			"pint": decimal.MustParse("4.50"),
			"half": decimal.MustParse("2.75"),
		},
		Available: true,
	})
	if err != nil {
		t.Fatalf("upsert lager: %v", err)
	}
	fries, err := h.MenuService.UpsertItem(ctx, service.UpsertMenuItemRequest{
		VenueID:   venue.ID,
		Name:      "Fries",
		Price:     decimal.MustParse("3.00"),
		Available: true,
	})
	if err != nil {
		t.Fatalf("upsert fries: %v", err)
	}
	return venue, lager.ID, fries.ID
}

// SeedDriver stores an online driver.
func (h *Harness) SeedDriver(t *testing.T, phone string) *domain.Driver {
	t.Helper()
	d := &domain.Driver{Name: "Driver " + phone, Phone: phone, Status: domain.DriverStatusOnline}
	if err := h.Drivers.Create(context.Background(), d); err != nil {
		t.Fatalf("create driver: %v", err)
	}
	return d
}

// PlaceDelivery places a delivery order of two lagers and one fries.
func (h *Harness) PlaceDelivery(t *testing.T, venueID, lagerID, friesID string) *service.PlaceOrderResult {
	t.Helper()
	dropoff := Dropoff
	res, err := h.OrderService.PlaceOrder(context.Background(), service.PlaceOrderRequest{
		VenueID:    venueID,
		CustomerID: "customer-1",
		Type:       domain.OrderTypeDelivery,
		Items: []service.CartItem{
			{MenuItemID: lagerID, Quantity: 2},
			{MenuItemID: friesID, Quantity: 1},
		},
		Dropoff: &dropoff,
	})
	if err != nil {
		t.Fatalf("place delivery order: %v", err)
	}
	return res
}

func redisLocation(driverID string, lat, lng float64) redis.DriverLocation {
	return redis.DriverLocation{DriverID: driverID, Lat: lat, Lng: lng}
}

// deliveryLockTTL mirrors the lock TTL used by the delivery service.
const deliveryLockTTL = 10 * time.Second

func zapNop() *zap.Logger {
	return zap.NewNop()
}
