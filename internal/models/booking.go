package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// ContactInfo is the contact triple attached to every booking request. The
// coordinator sends it as is; front-ends check it with ValidateContact.
type ContactInfo struct {
	Name  string `json:"user_name" validate:"required"`
	Email string `json:"user_email" validate:"required,email"`
	Phone string `json:"user_phone" validate:"required,phone_number"`
}

// BookingRequest is the body of POST /api/{sport}/bookings/.
type BookingRequest struct {
	Slot      int64  `json:"slot"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	UserPhone string `json:"user_phone"`
}

// NewBookingRequest combines a slot id and contact details.
func NewBookingRequest(slotID int64, c ContactInfo) BookingRequest {
	return BookingRequest{
		Slot:      slotID,
		UserName:  c.Name,
		UserEmail: c.Email,
		UserPhone: c.Phone,
	}
}

// Booking is a booking confirmation record.
type Booking struct {
	ID        int64     `json:"id"`
	Slot      SlotRef   `json:"slot"`
	UserName  string    `json:"user_name"`
	UserEmail string    `json:"user_email"`
	UserPhone string    `json:"user_phone"`
	CreatedAt time.Time `json:"created_at"`
}

// SlotRef holds the booked slot. The create endpoint answers with the bare slot id
// while the admin list endpoint nests the full slot record; both decode here.
type SlotRef struct {
	ID     int64
	Detail *Slot
}

// UnmarshalJSON accepts either a number or a slot object.
func (r *SlotRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = SlotRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '{' {
		var s Slot
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = SlotRef{ID: s.ID, Detail: &s}
		return nil
	}
	var id int64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	*r = SlotRef{ID: id}
	return nil
}

// MarshalJSON writes the nested slot when known, the id otherwise.
func (r SlotRef) MarshalJSON() ([]byte, error) {
	if r.Detail != nil {
		return json.Marshal(r.Detail)
	}
	return json.Marshal(r.ID)
}

// BlockRequest is the body of POST /api/{sport}/blocks/.
type BlockRequest struct {
	Date      string `json:"date"`       // YYYY-MM-DD
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// SportCounts is a per-sport counter pair used by the admin dashboard.
type SportCounts struct {
	Cricket    int `json:"cricket"`
	Pickleball int `json:"pickleball"`
}

// RecentBooking is a dashboard row.
type RecentBooking struct {
	ID        int64  `json:"id"`
	Sport     string `json:"sport"`
	User      string `json:"user"`
	Time      string `json:"time"`
	Date      string `json:"date"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// Dashboard is the aggregate returned by GET /api/admin/dashboard/.
type Dashboard struct {
	TodayBookings  SportCounts `json:"todayBookings"`
	WeeklyBookings SportCounts `json:"weeklyBookings"`
	AvailableSlots SportCounts `json:"availableSlots"`
	TotalSlots     SportCounts `json:"totalSlots"`
	BlockedSlots   SportCounts `json:"blockedSlots"`
	Revenue        struct {
		Today int `json:"today"`
		Week  int `json:"week"`
	} `json:"revenue"`
	RecentBookings []RecentBooking `json:"recentBookings"`
	TotalUsers     int             `json:"totalUsers"`
	Date           string          `json:"date"`
}
