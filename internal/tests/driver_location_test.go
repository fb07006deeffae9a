package tests

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"jointvibe/internal/domain"
	"jointvibe/internal/repository"
	"jointvibe/internal/service"
)

var errMockTimeout = errors.New("mock: redis timeout")

// driverFixture is a DriverService over in-memory mocks.
type driverFixture struct {
	locations *MockLocationStore
	repo      *MockDriverRepository
	svc       *service.DriverService
}

func newDriverFixture(seed ...*domain.Driver) *driverFixture {
	f := &driverFixture{
		locations: NewMockLocationStore(),
		repo:      NewMockDriverRepository(),
	}
	for _, d := range seed {
		f.repo.AddDriver(d)
	}
	f.svc = service.NewDriverService(f.locations, nil, f.repo, zap.NewNop())
	return f
}

func (f *driverFixture) ping(driverID string, lat, lng float64) error {
	return f.svc.UpdateLocation(context.Background(), service.UpdateLocationRequest{
		DriverID: driverID,
		Lat:      lat,
		Lng:      lng,
	})
}

// ──────────────────────────────────────────────
// 2. DRIVER PRESENCE AND LOCATION
// ──────────────────────────────────────────────

func TestDriverPing_StoresLocationAndGoesOnline(t *testing.T) {
	t.Parallel()

	f := newDriverFixture(&domain.Driver{ID: "driver-1", Name: "Ann", Status: domain.DriverStatusOffline})

	if err := f.ping("driver-1", 40.7128, -74.0060); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.locations.UpdateLocationCallCount != 1 {
		t.Errorf("expected one geo write, got %d", f.locations.UpdateLocationCallCount)
	}
	if !f.locations.HasLocation("driver-1") {
		t.Error("expected driver to be in the geo index")
	}
	if got := f.repo.GetDriver("driver-1").Status; got != domain.DriverStatusOnline {
		t.Errorf("status = %s, want %s", got, domain.DriverStatusOnline)
	}
}

func TestDriverPing_CoordinateBounds(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		lat, lng float64
		ok       bool
	}{
		"manhattan":      {40.7128, -74.0060, true},
		"north pole":     {90, 0, true},
		"south pole":     {-90, 0, true},
		"date line east": {0, 180, true},
		"date line west": {0, -180, true},
		"lat above 90":   {90.0001, 0, false},
		"lat below -90":  {-91, 0, false},
		"lng above 180":  {0, 180.5, false},
		"lng below -180": {0, -181, false},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			f := newDriverFixture(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOffline})

			err := f.ping("driver-1", tc.lat, tc.lng)
			switch {
			case tc.ok && err != nil:
				t.Errorf("unexpected error: %v", err)
			case !tc.ok && !errors.Is(err, domain.ErrInvalidLocation):
				t.Errorf("expected ErrInvalidLocation, got %v", err)
			}
			if !tc.ok && f.locations.HasLocation("driver-1") {
				t.Error("rejected ping must not reach the geo index")
			}
		})
	}
}

func TestDriverPing_Rejections(t *testing.T) {
	t.Parallel()

	f := newDriverFixture()

	if err := f.ping("", 40.7, -74.0); !errors.Is(err, service.ErrInvalidDriverID) {
		t.Errorf("empty id: expected ErrInvalidDriverID, got %v", err)
	}
	if err := f.ping("ghost", 40.7, -74.0); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("unknown driver: expected ErrNotFound, got %v", err)
	}
	if f.locations.HasLocation("ghost") {
		t.Error("unknown drivers never reach the geo index")
	}
}

func TestDriverPing_RepeatedUpdates(t *testing.T) {
	t.Parallel()

	f := newDriverFixture(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOffline})

	const pings = 60
	for i := 0; i < pings; i++ {
		if err := f.ping("driver-1", 40.70+float64(i)*0.001, -74.00); err != nil {
			t.Fatalf("ping %d: %v", i, err)
		}
	}

	if f.locations.UpdateLocationCallCount != pings {
		t.Errorf("expected %d geo writes, got %d", pings, f.locations.UpdateLocationCallCount)
	}
	// Only the first ping flips OFFLINE to ONLINE.
	if f.repo.UpdateStatusCallCount != 1 {
		t.Errorf("expected a single status write, got %d", f.repo.UpdateStatusCallCount)
	}
}

func TestDriverPing_OnDeliveryKeepsStatus(t *testing.T) {
	t.Parallel()

	f := newDriverFixture(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOnDelivery})

	if err := f.ping("driver-1", 40.7, -74.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.repo.GetDriver("driver-1").Status; got != domain.DriverStatusOnDelivery {
		t.Errorf("status = %s, want %s", got, domain.DriverStatusOnDelivery)
	}
	if f.repo.UpdateStatusCallCount != 0 {
		t.Errorf("expected no status write, got %d", f.repo.UpdateStatusCallCount)
	}
}

func TestDriverPing_GeoFailurePropagates(t *testing.T) {
	t.Parallel()

	f := newDriverFixture(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOffline})
	f.locations.UpdateLocationError = errMockTimeout

	if err := f.ping("driver-1", 40.7, -74.0); !errors.Is(err, errMockTimeout) {
		t.Errorf("expected redis error, got %v", err)
	}
}

func TestDriverOffline_LeavesGeoIndex(t *testing.T) {
	t.Parallel()

	f := newDriverFixture(&domain.Driver{ID: "driver-1", Status: domain.DriverStatusOffline})
	ctx := context.Background()

	if err := f.ping("driver-1", 40.7, -74.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.svc.SetDriverOffline(ctx, "driver-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.locations.HasLocation("driver-1") {
		t.Error("expected location to be removed")
	}
	if got := f.repo.GetDriver("driver-1").Status; got != domain.DriverStatusOffline {
		t.Errorf("status = %s, want %s", got, domain.DriverStatusOffline)
	}
}

func TestDriverRegister_UniquePhone(t *testing.T) {
	t.Parallel()

	f := newDriverFixture()
	ctx := context.Background()

	driver, err := f.svc.Register(ctx, service.RegisterDriverRequest{Name: "Ann", Phone: "+1 555 0100"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver.Status != domain.DriverStatusOffline {
		t.Errorf("new driver status = %s, want %s", driver.Status, domain.DriverStatusOffline)
	}

	_, err = f.svc.Register(ctx, service.RegisterDriverRequest{Name: "Bob", Phone: "+1 555 0100"})
	if !errors.Is(err, service.ErrDriverExists) {
		t.Errorf("expected ErrDriverExists, got %v", err)
	}
}

func TestListDrivers_FiltersByStatus(t *testing.T) {
	t.Parallel()

	f := newDriverFixture(
		&domain.Driver{ID: "driver-a", Status: domain.DriverStatusOnline},
		&domain.Driver{ID: "driver-b", Status: domain.DriverStatusOffline},
		&domain.Driver{ID: "driver-c", Status: domain.DriverStatusOnline},
	)
	ctx := context.Background()

	all, err := f.svc.ListDrivers(ctx, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 drivers, got %d", len(all))
	}

	online, err := f.svc.ListDrivers(ctx, domain.DriverStatusOnline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(online) != 2 || online[0].ID != "driver-a" || online[1].ID != "driver-c" {
		t.Errorf("unexpected online drivers: %+v", online)
	}

	if _, err := f.svc.ListDrivers(ctx, "NAPPING"); !errors.Is(err, service.ErrInvalidDriverStatus) {
		t.Errorf("expected ErrInvalidDriverStatus, got %v", err)
	}
}
