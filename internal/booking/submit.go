package booking

import (
	"context"
	"fmt"
	"sync"
	"time"

	"turfbook/internal/events"
	"turfbook/internal/metrics"
	"turfbook/internal/models"
	"turfbook/internal/pricing"
)

// BatchResult reports the outcome of one Submit call, slot by slot.
type BatchResult struct {
	Sport models.SportType `json:"sport"`
	// Confirmed lists the bookings that exist remotely after the call: every booking on
	// success, only the ones that could not be rolled back on failure.
	Confirmed []models.Booking `json:"confirmed"`
	// Failed lists slot ids whose booking request failed.
	Failed []int64 `json:"failed,omitempty"`
	// RolledBack lists slot ids booked and then cancelled because another slot failed.
	RolledBack []int64 `json:"rolled_back,omitempty"`
	// RollbackFailed lists slot ids booked whose cancellation also failed.
	RollbackFailed []int64 `json:"rollback_failed,omitempty"`
	TotalPrice     int     `json:"total_price"`
}

type slotOutcome struct {
	slotID  int64
	booking *models.Booking
	err     error
}

// Submit books every selected slot with one request per slot, issued concurrently,
// and waits for all of them. If any request fails the whole submission fails and the
// bookings that did succeed are cancelled again. The selection is left untouched.
func (c *Coordinator) Submit(ctx context.Context, contact models.ContactInfo) (BatchResult, error) {
	c.mu.Lock()
	sport := c.sportType
	if !sport.IsValid() {
		c.mu.Unlock()
		return BatchResult{}, ErrNoSportType
	}
	if c.selected.Len() == 0 {
		c.mu.Unlock()
		return BatchResult{}, ErrEmptySelection
	}
	ids := c.selected.IDs()
	slots := make([]models.Slot, len(c.slots))
	copy(slots, c.slots)
	c.loading = true
	c.errMsg = ""
	c.unlockAndNotify()

	result := BatchResult{Sport: sport, TotalPrice: pricing.Total(slots, ids)}
	outcomes := c.fanOut(ctx, sport, ids, contact)

	var errs []error
	var booked []slotOutcome
	for _, o := range outcomes {
		if o.err != nil {
			metrics.IncBookingCreated(string(sport), "error")
			result.Failed = append(result.Failed, o.slotID)
			errs = append(errs, fmt.Errorf("slot %d: %w", o.slotID, o.err))
			continue
		}
		metrics.IncBookingCreated(string(sport), "ok")
		booked = append(booked, o)
	}

	if len(errs) == 0 {
		for _, o := range booked {
			result.Confirmed = append(result.Confirmed, *o.booking)
			c.publish(events.BookingConfirmed, c.bookingPayload(sport, slots, o, contact))
		}
		c.update(func() { c.loading = false })
		c.logger.Info().
			Str("sport", string(sport)).
			Int("slots", len(ids)).
			Int("total", result.TotalPrice).
			Msg("booking batch confirmed")
		return result, nil
	}

	c.compensate(ctx, sport, slots, booked, contact, &result)

	c.publish(events.BookingFailed, events.BatchFailedPayload{
		Sport:        string(sport),
		FailedSlots:  result.Failed,
		RolledBack:   result.RolledBack,
		RollbackErrs: result.RollbackFailed,
		Reason:       errs[0].Error(),
	})
	c.update(func() {
		c.errMsg = bookingErrorText
		c.loading = false
	})
	c.logger.Warn().
		Str("sport", string(sport)).
		Ints64("failed", result.Failed).
		Ints64("rolled_back", result.RolledBack).
		Ints64("rollback_failed", result.RollbackFailed).
		Msg("booking batch failed")
	return result, wrapBatchError(errs)
}

// fanOut issues one booking request per slot and joins on all of them. Outcomes are
// returned in selection order regardless of completion order.
func (c *Coordinator) fanOut(ctx context.Context, sport models.SportType, ids []int64, contact models.ContactInfo) []slotOutcome {
	outcomes := make([]slotOutcome, len(ids))
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			b, err := c.client.CreateBooking(ctx, sport, models.NewBookingRequest(id, contact))
			if err == nil && b == nil {
				err = fmt.Errorf("empty booking response")
			}
			outcomes[i] = slotOutcome{slotID: id, booking: b, err: err}
		}(i, id)
	}
	wg.Wait()
	return outcomes
}

// compensate cancels the bookings of a failed batch that went through. It runs
// detached from ctx so a cancelled caller still gets its rollback.
func (c *Coordinator) compensate(ctx context.Context, sport models.SportType, slots []models.Slot, booked []slotOutcome, contact models.ContactInfo, result *BatchResult) {
	if len(booked) == 0 {
		return
	}
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.rollbackTimeout)
	defer cancel()

	errs := make([]error, len(booked))
	var wg sync.WaitGroup
	for i, o := range booked {
		wg.Add(1)
		go func(i int, o slotOutcome) {
			defer wg.Done()
			errs[i] = c.client.CancelBooking(rctx, sport, o.booking.ID)
		}(i, o)
	}
	wg.Wait()

	for i, o := range booked {
		if errs[i] != nil {
			c.logger.Error().Err(errs[i]).
				Int64("booking_id", o.booking.ID).
				Int64("slot_id", o.slotID).
				Msg("rollback of booked slot failed")
			result.RollbackFailed = append(result.RollbackFailed, o.slotID)
			result.Confirmed = append(result.Confirmed, *o.booking)
			c.publish(events.BookingConfirmed, c.bookingPayload(sport, slots, o, contact))
			continue
		}
		metrics.IncBookingCompensated(string(sport))
		result.RolledBack = append(result.RolledBack, o.slotID)
		c.publish(events.BookingCompensated, c.bookingPayload(sport, slots, o, contact))
	}
}

func (c *Coordinator) bookingPayload(sport models.SportType, slots []models.Slot, o slotOutcome, contact models.ContactInfo) events.BookingPayload {
	p := events.BookingPayload{
		BookingID:  o.booking.ID,
		Sport:      string(sport),
		SlotID:     o.slotID,
		UserName:   contact.Name,
		UserEmail:  contact.Email,
		UserPhone:  contact.Phone,
		TelegramID: c.owner,
		At:         time.Now(),
	}
	if s := models.FindSlot(slots, o.slotID); s != nil {
		p.Date = s.Date
		p.StartTime = s.StartTime
		p.EndTime = s.EndTime
		p.Price = pricing.SlotPrice(s)
	}
	return p
}

func (c *Coordinator) publish(eventType string, payload any) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishJSON(eventType, payload); err != nil {
		c.logger.Warn().Err(err).Str("event", eventType).Msg("publish failed")
	}
}
