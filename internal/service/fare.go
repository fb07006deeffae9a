package service

import (
	"fmt"
	"math"

	"github.com/govalues/decimal"

	"jointvibe/internal/domain"
)

// distanceScale is the precision kept for distances and durations before pricing.
const distanceScale = 3

// FareCalculator prices trips from a rate table.
type FareCalculator struct {
	rates domain.RateTable
}

// NewFareCalculator creates a FareCalculator.
func NewFareCalculator(rates domain.RateTable) *FareCalculator {
	return &FareCalculator{rates: rates}
}

// Estimate prices a trip of distanceKm. When durationMinutes is nil the
// duration is derived from the average speed of the rate table.
//
// fare = max(minimum, round(base + km*perKm + min*perMinute, 2))
// platformFee = round(fare*feeRate, 2), driverEarnings = fare - platformFee
func (c *FareCalculator) Estimate(distanceKm float64, durationMinutes *float64) (domain.FareEstimate, error) {
	if !validMeasure(distanceKm) {
		return domain.FareEstimate{}, fmt.Errorf("%w: distance %v", domain.ErrInvalidInput, distanceKm)
	}

	var minutes float64
	switch {
	case durationMinutes != nil:
		if !validMeasure(*durationMinutes) {
			return domain.FareEstimate{}, fmt.Errorf("%w: duration %v", domain.ErrInvalidInput, *durationMinutes)
		}
		minutes = *durationMinutes
	case c.rates.AvgSpeedKmh > 0:
		minutes = distanceKm / c.rates.AvgSpeedKmh * 60
	}

	km, err := measure(distanceKm)
	if err != nil {
		return domain.FareEstimate{}, err
	}
	mins, err := measure(minutes)
	if err != nil {
		return domain.FareEstimate{}, err
	}

	distancePart, err := km.Mul(c.rates.PerKm)
	if err != nil {
		return domain.FareEstimate{}, fmt.Errorf("distance charge: %w", err)
	}
	timePart, err := mins.Mul(c.rates.PerMinute)
	if err != nil {
		return domain.FareEstimate{}, fmt.Errorf("time charge: %w", err)
	}
	fare, err := c.rates.BaseFare.Add(distancePart)
	if err != nil {
		return domain.FareEstimate{}, fmt.Errorf("fare: %w", err)
	}
	if fare, err = fare.Add(timePart); err != nil {
		return domain.FareEstimate{}, fmt.Errorf("fare: %w", err)
	}
	fare = domain.RoundMoney(fare)

	if fare.Cmp(c.rates.MinimumFare) < 0 {
		fare = domain.RoundMoney(c.rates.MinimumFare)
	}

	fee, err := fare.Mul(c.rates.PlatformFeeRate)
	if err != nil {
		return domain.FareEstimate{}, fmt.Errorf("platform fee: %w", err)
	}
	fee = domain.RoundMoney(fee)

	earnings, err := fare.Sub(fee)
	if err != nil {
		return domain.FareEstimate{}, fmt.Errorf("driver earnings: %w", err)
	}

	kmOut, _ := km.Float64()
	minOut, _ := mins.Float64()
	return domain.FareEstimate{
		DistanceKm:      kmOut,
		DurationMinutes: minOut,
		Fare:            fare,
		DriverEarnings:  domain.RoundMoney(earnings),
		PlatformFee:     fee,
	}, nil
}

// EstimateBetween prices the straight-line (haversine) trip between two points.
func (c *FareCalculator) EstimateBetween(pickup, dropoff domain.Location, durationMinutes *float64) (domain.FareEstimate, error) {
	if !pickup.Valid() || !dropoff.Valid() {
		return domain.FareEstimate{}, domain.ErrInvalidLocation
	}
	return c.Estimate(domain.HaversineKm(pickup, dropoff), durationMinutes)
}

func validMeasure(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func measure(v float64) (decimal.Decimal, error) {
	d, err := decimal.NewFromFloat64(v)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return d.Round(distanceScale), nil
}
