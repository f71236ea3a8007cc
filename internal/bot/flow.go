package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"turfbook/internal/booking"
	"turfbook/internal/events"
	"turfbook/internal/journal"
	"turfbook/internal/models"
	"turfbook/internal/pricing"
	"turfbook/internal/turfapi"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) startBookingFlow(chatID, userID int64, sport models.SportType) {
	b.state.reset(userID)
	sess := b.sessions.GetOrCreate(SessionKey(userID))
	sess.Navigate(booking.RouteFor(sport))
	sess.Coordinator.SetSportType(sport)
	sess.Coordinator.ClearSelectedSlots()
	b.sendDatePicker(chatID, userID)
}

func (b *Bot) sendDatePicker(chatID, userID int64) {
	sess := b.sessions.GetOrCreate(SessionKey(userID))
	sport := booking.SportFromRoute(sess.Route())
	if sport == models.SportUnset {
		msg := tgbotapi.NewMessage(chatID, "Choose a sport first:")
		msg.ReplyMarkup = sportKeyboard()
		b.send(msg)
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("%s: pick a date", sport.Title()))
	msg.ReplyMarkup = dateKeyboard(time.Now().In(b.loc), b.daysAhead)
	b.send(msg)
}

func (b *Bot) handleDateCallback(ctx context.Context, chatID, userID int64, raw string) {
	date, err := time.ParseInLocation(models.DateLayout, raw, b.loc)
	if err != nil {
		b.reply(chatID, "Invalid date")
		return
	}

	sess := b.sessions.GetOrCreate(SessionKey(userID))
	if !booking.IsBookingRoute(sess.Route()) {
		b.sendDatePicker(chatID, userID)
		return
	}
	sess.Coordinator.SetSelectedDate(date)
	sess.Coordinator.ClearSelectedSlots()
	sess.Coordinator.FetchSlots(ctx, sess.Route())
	b.state.get(userID).Step = stepSlots

	msg := tgbotapi.NewMessage(chatID, slotsText(sess.Coordinator.Snapshot()))
	msg.ReplyMarkup = slotKeyboard(sess.Coordinator.Snapshot())
	b.send(msg)
}

func slotsText(snap booking.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s, %s\n", snap.SportType.Title(), snap.SelectedDate.Format("Mon 02 Jan 2006"))
	switch {
	case snap.Error != "":
		sb.WriteString(snap.Error)
	case len(snap.Slots) == 0:
		sb.WriteString("No slots available for this date.")
	default:
		fmt.Fprintf(&sb, "Tap slots to select them. Selected: %d, total %s",
			len(snap.SelectedSlots), formatPrice(snap.TotalPrice))
	}
	return sb.String()
}

func (b *Bot) editSlots(chatID int64, messageID int, sess *booking.Session) {
	snap := sess.Coordinator.Snapshot()
	b.send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, slotsText(snap), slotKeyboard(snap)))
}

func (b *Bot) handleSlotCallback(cq *tgbotapi.CallbackQuery, raw string) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		b.answerCallback(cq.ID, "Invalid slot")
		return
	}
	sess := b.sessions.GetOrCreate(SessionKey(cq.From.ID))
	// A selected slot that was booked or blocked since can still be deselected.
	if !sess.Coordinator.IsSelected(id) {
		slot := models.FindSlot(sess.Coordinator.Slots(), id)
		if slot == nil || !slot.Selectable() {
			b.answerCallback(cq.ID, "This slot is not available")
			return
		}
	}

	sess.Coordinator.ToggleSlotSelection(id)
	b.answerCallback(cq.ID, "")
	b.editSlots(cq.Message.Chat.ID, cq.Message.MessageID, sess)
}

func (b *Bot) handleBookCallback(cq *tgbotapi.CallbackQuery) {
	userID := cq.From.ID
	sess := b.sessions.GetOrCreate(SessionKey(userID))
	if len(sess.Coordinator.SelectedSlots()) == 0 {
		b.answerCallback(cq.ID, "Select at least one slot")
		return
	}
	b.answerCallback(cq.ID, "")

	st := b.state.get(userID)
	st.Step = stepName
	b.reply(cq.Message.Chat.ID, "Your name:")
}

func (b *Bot) handleContactStep(chatID, userID int64, text string) {
	st := b.state.get(userID)
	text = strings.TrimSpace(text)
	contact := st.Contact
	switch st.Step {
	case stepName:
		contact.Name = text
		if models.ValidateContact(contact, "Name") != nil {
			b.reply(chatID, "Please enter your name:")
			return
		}
		st.Contact = contact
		st.Step = stepEmail
		b.reply(chatID, "Your email:")
	case stepEmail:
		contact.Email = text
		if models.ValidateContact(contact, "Email") != nil {
			b.reply(chatID, "That doesn't look like an email address. Example: name@example.com")
			return
		}
		st.Contact = contact
		st.Step = stepPhone
		b.reply(chatID, "Your phone number:")
	case stepPhone:
		contact.Phone = text
		if models.ValidateContact(contact, "Phone") != nil {
			b.reply(chatID, "Invalid phone number. Example: +91 98765 43210")
			return
		}
		contact.Phone, _ = models.NormalizePhone(text)
		st.Contact = contact
		st.Step = stepConfirm
		b.sendConfirm(chatID, userID, st.Contact)
	default:
		b.reply(chatID, "Use /cricket or /pickleball to start a booking, or /help")
	}
}

func (b *Bot) sendConfirm(chatID, userID int64, contact models.ContactInfo) {
	snap := b.sessions.GetOrCreate(SessionKey(userID)).Coordinator.Snapshot()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Please confirm your booking\n\n%s, %s\n", snap.SportType.Title(), snap.SelectedDate.Format("Mon 02 Jan 2006"))
	for _, id := range snap.SelectedSlots {
		if s := models.FindSlot(snap.Slots, id); s != nil {
			fmt.Fprintf(&sb, "• %s %s\n", s.Label(), formatPrice(pricing.SlotPrice(s)))
		}
	}
	fmt.Fprintf(&sb, "\nTotal: %s\n\n%s\n%s\n%s", formatPrice(snap.TotalPrice), contact.Name, contact.Email, contact.Phone)

	msg := tgbotapi.NewMessage(chatID, sb.String())
	msg.ReplyMarkup = confirmKeyboard()
	b.send(msg)
}

func (b *Bot) handleConfirm(ctx context.Context, chatID, userID int64) {
	st := b.state.get(userID)
	if st.Step != stepConfirm || models.ValidateContact(st.Contact) != nil {
		b.reply(chatID, "Nothing to confirm. Use /cricket or /pickleball to start a booking.")
		return
	}
	sess := b.sessions.GetOrCreate(SessionKey(userID))
	coord := sess.Coordinator

	result, err := coord.Submit(ctx, st.Contact)
	switch {
	case errors.Is(err, booking.ErrNoSportType), errors.Is(err, booking.ErrEmptySelection):
		b.state.reset(userID)
		b.reply(chatID, "Your selection is empty. Pick slots again with /cricket or /pickleball.")
		return
	case err != nil:
		zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("telegram booking failed")
		st.Step = stepSlots
		text := coord.Error()
		if len(result.RollbackFailed) > 0 {
			text += "\nSome slots could not be released, please contact us."
		}
		b.reply(chatID, text)
		coord.FetchSlots(ctx, sess.Route())
		snap := coord.Snapshot()
		msg := tgbotapi.NewMessage(chatID, slotsText(snap))
		msg.ReplyMarkup = slotKeyboard(snap)
		b.send(msg)
		return
	}

	coord.ClearSelectedSlots()
	b.state.reset(userID)

	var sb strings.Builder
	sb.WriteString("Booking confirmed! 🎉\n")
	for _, bk := range result.Confirmed {
		fmt.Fprintf(&sb, "#%d slot %d\n", bk.ID, bk.Slot.ID)
	}
	fmt.Fprintf(&sb, "Total: %s", formatPrice(result.TotalPrice))
	b.reply(chatID, sb.String())
}

func (b *Bot) abortFlow(chatID, userID int64) {
	b.state.reset(userID)
	if sess := b.sessions.Get(SessionKey(userID)); sess != nil {
		sess.Coordinator.ClearSelectedSlots()
		sess.Navigate(booking.RouteHome)
	}
	b.reply(chatID, "Booking cancelled.")
}

func (b *Bot) handleMyBookings(ctx context.Context, chatID, userID int64) {
	if b.journal == nil {
		b.reply(chatID, "Booking history is unavailable")
		return
	}
	entries, err := b.journal.ListByUser(ctx, userID, 10)
	if err != nil {
		b.logger.Error().Err(err).Int64("user_id", userID).Msg("list user bookings")
		b.reply(chatID, "Could not load your bookings")
		return
	}
	if len(entries) == 0 {
		b.reply(chatID, "You have no bookings yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your bookings:\n")
	for i := range entries {
		sb.WriteString(formatEntry(&entries[i]))
		sb.WriteByte('\n')
	}
	b.reply(chatID, sb.String())
}

func formatEntry(e *journal.Entry) string {
	slot := models.Slot{StartTime: e.StartTime, EndTime: e.EndTime}
	sport := models.SportType(e.Sport)
	return fmt.Sprintf("#%d %s %s %s | %s | %s", e.BookingID, sport.Title(), e.Date, slot.Label(), formatPrice(e.Price), e.Status)
}

func (b *Bot) handleCancelBooking(ctx context.Context, chatID, userID int64, text string) {
	parts := strings.Fields(text)
	if len(parts) < 2 {
		b.reply(chatID, "Usage: /cancel_booking <id>")
		return
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		b.reply(chatID, "Invalid booking id")
		return
	}
	if b.journal == nil || b.remote == nil {
		b.reply(chatID, "Cancellation is unavailable")
		return
	}

	entry, err := b.journal.FindForUser(ctx, userID, id)
	switch {
	case errors.Is(err, journal.ErrNotFound):
		b.reply(chatID, "Booking not found")
		return
	case err != nil:
		b.reply(chatID, "Could not load the booking")
		return
	case entry.Status != journal.StatusConfirmed:
		b.reply(chatID, "This booking is already cancelled")
		return
	}

	text = fmt.Sprintf("Booking #%d cancelled", id)
	if err := b.remote.CancelBooking(ctx, models.SportType(entry.Sport), entry.BookingID); err != nil {
		if turfapi.StatusCode(err) != http.StatusNotFound {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("booking_id", id).Msg("cancel booking failed")
			b.reply(chatID, "Could not cancel the booking, please try again")
			return
		}
		text = fmt.Sprintf("Booking #%d no longer exists and is marked cancelled", id)
	}
	if b.publisher != nil {
		if err := b.publisher.PublishJSON(events.BookingCancelled, entryPayload(entry)); err != nil {
			b.logger.Warn().Err(err).Msg("publish cancellation")
		}
	}
	b.reply(chatID, text)
}

func entryPayload(e *journal.Entry) events.BookingPayload {
	return events.BookingPayload{
		BookingID:  e.BookingID,
		Sport:      e.Sport,
		SlotID:     e.SlotID,
		Date:       e.Date,
		StartTime:  e.StartTime,
		EndTime:    e.EndTime,
		Price:      e.Price,
		UserName:   e.UserName,
		UserEmail:  e.UserEmail,
		UserPhone:  e.UserPhone,
		TelegramID: e.TelegramID,
		At:         time.Now(),
	}
}
