package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	driverGeoKey  = "geo:drivers"
	driverSeenKey = "geo:drivers:seen" // sorted set: driver id -> unix time of last ping
)

// DriverLocation is a driver's last reported position.
type DriverLocation struct {
	DriverID   string
	Lat        float64
	Lng        float64
	DistanceKm float64 // distance from the search center, set by FindNearbyDrivers
}

// LocationStore is the Redis GEO index of online drivers.
type LocationStore struct {
	client     *redis.Client
	limit      int
	staleAfter time.Duration
	now        func() time.Time
}

// NewLocationStore creates a LocationStore. limit caps how many drivers a
// nearby search returns and staleAfter hides drivers whose last ping is
// older than that; zero disables either.
func NewLocationStore(client *redis.Client, limit int, staleAfter time.Duration) *LocationStore {
	return &LocationStore{client: client, limit: limit, staleAfter: staleAfter, now: time.Now}
}

// UpdateLocation records a ping: position in the GEO set, time in the seen set.
func (s *LocationStore) UpdateLocation(ctx context.Context, driverID string, lat, lng float64) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{Name: driverID, Longitude: lng, Latitude: lat})
		pipe.ZAdd(ctx, driverSeenKey, redis.Z{Score: float64(s.now().Unix()), Member: driverID})
		return nil
	})
	return err
}

// purgeStaleScript drops every driver whose last ping is at or below
// ARGV[1] from both the GEO set and the seen set in one step, so a ping
// landing in between cannot be lost.
var purgeStaleScript = redis.NewScript(`
local stale = redis.call("ZRANGEBYSCORE", KEYS[2], "-inf", ARGV[1])
for i = 1, #stale, 500 do
	local chunk = {unpack(stale, i, math.min(i + 499, #stale))}
	redis.call("ZREM", KEYS[1], unpack(chunk))
	redis.call("ZREM", KEYS[2], unpack(chunk))
end
return #stale
`)

// FindNearbyDrivers returns up to limit drivers within radiusKm of the
// point, nearest first, skipping drivers that stopped pinging.
func (s *LocationStore) FindNearbyDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]DriverLocation, error) {
	query := redis.GeoSearchQuery{
		Longitude:  lng,
		Latitude:   lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}

	var cutoff float64
	if s.staleAfter > 0 {
		cutoff = float64(s.now().Add(-s.staleAfter).Unix())
		// Strictly below the cutoff; a ping exactly at it is still fresh.
		if err := purgeStaleScript.Run(ctx, s.client, []string{driverGeoKey, driverSeenKey}, cutoff-1).Err(); err != nil {
			return nil, err
		}
	} else {
		query.Count = s.limit
	}

	hits, err := s.client.GeoSearchLocation(ctx, driverGeoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: query,
		WithCoord:      true,
		WithDist:       true,
	}).Result()
	if err != nil || len(hits) == 0 {
		return nil, err
	}

	var seen []float64
	if s.staleAfter > 0 {
		members := make([]string, len(hits))
		for i, h := range hits {
			members[i] = h.Name
		}
		if seen, err = s.client.ZMScore(ctx, driverSeenKey, members...).Result(); err != nil {
			return nil, err
		}
	}
	return selectFresh(hits, seen, cutoff, s.limit), nil
}

// selectFresh keeps the hits whose last-seen time is at least cutoff and
// caps the result at limit. A nil seen slice keeps every hit; members
// missing from the seen set score 0 and count as stale. limit <= 0 means
// no cap.
func selectFresh(hits []redis.GeoLocation, seen []float64, cutoff float64, limit int) []DriverLocation {
	out := make([]DriverLocation, 0, len(hits))
	for i, h := range hits {
		if limit > 0 && len(out) == limit {
			break
		}
		if seen != nil && (i >= len(seen) || seen[i] < cutoff) {
			continue
		}
		out = append(out, DriverLocation{DriverID: h.Name, Lat: h.Latitude, Lng: h.Longitude, DistanceKm: h.Dist})
	}
	return out
}

// RemoveLocation drops a driver from the index, e.g. when they go offline.
func (s *LocationStore) RemoveLocation(ctx context.Context, driverID string) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, driverGeoKey, driverID)
		pipe.ZRem(ctx, driverSeenKey, driverID)
		return nil
	})
	return err
}
