package domain

import "github.com/govalues/decimal"

// FareEstimate is the price of a delivery run before it is committed.
// It is never persisted on its own.
type FareEstimate struct {
	DistanceKm      float64
	DurationMinutes float64
	Fare            decimal.Decimal
	DriverEarnings  decimal.Decimal
	PlatformFee     decimal.Decimal
}

// RateTable holds the pricing parameters used by the fare calculator.
type RateTable struct {
	BaseFare        decimal.Decimal
	PerKm           decimal.Decimal
	PerMinute       decimal.Decimal
	MinimumFare     decimal.Decimal
	PlatformFeeRate decimal.Decimal // 0.10 = 10% of the fare
	AvgSpeedKmh     float64         // used when no duration is supplied; 0 disables
}

// DefaultRateTable returns the standard rates.
func DefaultRateTable() RateTable {
	return RateTable{
		BaseFare:        decimal.MustNew(250, 2), // $2.50
		PerKm:           decimal.MustNew(150, 2), // $1.50 per km
		PerMinute:       decimal.MustNew(25, 2),  // $0.25 per minute
		MinimumFare:     decimal.MustNew(500, 2), // $5.00
		PlatformFeeRate: decimal.MustNew(10, 2),  // 10%
		AvgSpeedKmh:     30,
	}
}
