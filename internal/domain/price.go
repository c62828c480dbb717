package domain

// PriceLevel is the day-ahead electricity price tier supplied by the
// Tempo provider.
type PriceLevel int

const (
	PriceUnknown PriceLevel = iota
	PriceLow                // blue day
	PriceNormal             // white day
	PriceHigh               // red day
)

// String returns the price level name.
func (p PriceLevel) String() string {
	switch p {
	case PriceLow:
		return "low"
	case PriceNormal:
		return "normal"
	case PriceHigh:
		return "high"
	default:
		return "unknown"
	}
}

// PriceSignal holds the price levels for today and tomorrow.
type PriceSignal struct {
	Today    PriceLevel
	Tomorrow PriceLevel
}

// Setpoints holds the two configured target temperatures: one used inside
// off-peak windows, one used during full-cost hours.
type Setpoints struct {
	OffPeak  float64
	FullCost float64
}
