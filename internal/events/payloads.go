package events

import "time"

// BookingPayload describes a single remote booking touched by the booking flow.
type BookingPayload struct {
	BookingID  int64     `json:"booking_id"`
	Sport      string    `json:"sport"`
	SlotID     int64     `json:"slot_id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Price      int       `json:"price"`
	UserName   string    `json:"user_name"`
	UserEmail  string    `json:"user_email"`
	UserPhone  string    `json:"user_phone"`
	TelegramID int64     `json:"telegram_id,omitempty"`
	At         time.Time `json:"at"`
}

// BatchFailedPayload summarizes a failed multi-slot submission.
type BatchFailedPayload struct {
	Sport        string  `json:"sport"`
	FailedSlots  []int64 `json:"failed_slots"`
	RolledBack   []int64 `json:"rolled_back"`
	RollbackErrs []int64 `json:"rollback_failed"`
	Reason       string  `json:"reason"`
}
