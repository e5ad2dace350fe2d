// Package energy converts power samples into billable energy figures.
package energy

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	KWhPrecision      int32 = 3
	CurrencyPrecision int32 = 2
	ReadingPrecision  int32 = 6
)

var wattSecondsPerKWh = decimal.NewFromInt(3_600_000)

// KWh converts watts sustained for interval into kilowatt-hours, unrounded.
func KWh(watts decimal.Decimal, interval time.Duration) decimal.Decimal {
	seconds := decimal.New(int64(interval), -9)
	return watts.Mul(seconds).Div(wattSecondsPerKWh)
}

// Total converts the summed watts of a period's samples and rounds to KWhPrecision.
func Total(sumWatts decimal.Decimal, interval time.Duration) decimal.Decimal {
	return KWh(sumWatts, interval).Round(KWhPrecision)
}

func ReadingKWh(watts float64, interval time.Duration) decimal.Decimal {
	return KWh(decimal.NewFromFloat(watts), interval).Round(ReadingPrecision)
}

// Exceeds reports whether consumption is billable. Usage equal to the quota is not.
func Exceeds(total, quota decimal.Decimal) bool {
	return total.GreaterThan(quota)
}

func Overage(total, quota decimal.Decimal) decimal.Decimal {
	return OverQuota(total, quota).Round(KWhPrecision)
}

func Amount(overage, tariff decimal.Decimal) decimal.Decimal {
	return overage.Mul(tariff).Round(CurrencyPrecision)
}

// OverQuota returns max(kwh - quota, 0).
func OverQuota(kwh, quota decimal.Decimal) decimal.Decimal {
	diff := kwh.Sub(quota)
	if diff.IsNegative() {
		return decimal.Zero
	}
	return diff
}
