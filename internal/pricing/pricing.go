// Package pricing resolves the price of a slot.
package pricing

import "turfbook/internal/models"

// Fallback prices by start hour, used only when the server omits a price.
const (
	EarlyMorningPrice = 1200 // [04:00, 07:00)
	DaytimePrice      = 1500 // [07:00, 16:00)
	EveningPrice      = 2000 // [16:00, 24:00)
	NightPrice        = 1200 // [00:00, 04:00) and anything unparsable
)

// FallbackForHour applies the time-of-day rule.
func FallbackForHour(hour int) int {
	switch {
	case hour >= 4 && hour < 7:
		return EarlyMorningPrice
	case hour >= 7 && hour < 16:
		return DaytimePrice
	case hour >= 16 && hour < 24:
		return EveningPrice
	default:
		return NightPrice
	}
}

// Fallback returns the local price for a slot based on its start time.
func Fallback(slot *models.Slot) int {
	hour, ok := slot.StartHour()
	if !ok {
		return NightPrice
	}
	return FallbackForHour(hour)
}

// SlotPrice returns the server price when present (non-zero), the fallback otherwise.
func SlotPrice(slot *models.Slot) int {
	if slot.Price != nil && *slot.Price != 0 {
		return *slot.Price
	}
	return Fallback(slot)
}

// Total sums the price of every id found in slots. Unknown ids add nothing.
func Total(slots []models.Slot, ids []int64) int {
	total := 0
	for _, id := range ids {
		if s := models.FindSlot(slots, id); s != nil {
			total += SlotPrice(s)
		}
	}
	return total
}
