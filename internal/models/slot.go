package models

import (
	"strconv"
	"strings"
)

// DateLayout is the calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Slot is one bookable hour-long interval for a sport on a date, as returned by the
// remote slot API. The client never mutates a Slot.
type Slot struct {
	ID                 int64  `json:"id"`
	Date               string `json:"date"`       // YYYY-MM-DD
	StartTime          string `json:"start_time"` // HH:MM or HH:MM:SS
	EndTime            string `json:"end_time"`
	StartTimeFormatted string `json:"start_time_formatted,omitempty"`
	EndTimeFormatted   string `json:"end_time_formatted,omitempty"`
	IsBlocked          bool   `json:"is_blocked"`
	BlockReason        string `json:"block_reason,omitempty"`
	IsBooked           bool   `json:"is_booked,omitempty"`
	UserName           string `json:"user_name,omitempty"`
	Price              *int   `json:"price,omitempty"`
}

// Selectable reports whether the slot may be offered for selection.
func (s *Slot) Selectable() bool {
	return !s.IsBlocked && !s.IsBooked
}

// StartHour returns the hour component of StartTime. ok is false when the value
// cannot be parsed.
func (s *Slot) StartHour() (int, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(s.StartTime), ":")
	h, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return h, true
}

// Label returns "HH:MM-HH:MM" for display.
func (s *Slot) Label() string {
	return shortClock(s.StartTime) + "-" + shortClock(s.EndTime)
}

func shortClock(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 5 && v[2] == ':' {
		return v[:5]
	}
	return v
}

// FindSlot returns the slot with the given id, or nil.
func FindSlot(slots []Slot, id int64) *Slot {
	for i := range slots {
		if slots[i].ID == id {
			return &slots[i]
		}
	}
	return nil
}
