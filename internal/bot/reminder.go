package bot

import (
	"context"
	"fmt"
	"time"

	"turfbook/internal/journal"
	"turfbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Telegram rejects bursts above roughly 30 messages per second per bot.
const (
	broadcastRate  = 20
	broadcastBurst = 30
)

// StartReminders messages users about their next-day bookings every day at hour.
func (b *Bot) StartReminders(ctx context.Context, hour int) {
	if b.journal == nil {
		return
	}

	go func() {
		timer := time.NewTimer(timeUntilNextHour(time.Now().In(b.loc), hour))
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
				b.sendTomorrowReminders(ctx)
				timer.Reset(timeUntilNextHour(time.Now().In(b.loc), hour))
			}
		}
	}()
}

func (b *Bot) sendTomorrowReminders(ctx context.Context) int {
	tomorrow := time.Now().In(b.loc).AddDate(0, 0, 1).Format(models.DateLayout)
	entries, err := b.journal.ListByDate(ctx, tomorrow, journal.StatusConfirmed)
	if err != nil {
		b.logger.Error().Err(err).Str("date", tomorrow).Msg("reminder: list bookings")
		return 0
	}

	limiter := rate.NewLimiter(broadcastRate, broadcastBurst)
	sent := 0
	for i := range entries {
		e := &entries[i]
		if e.TelegramID == 0 {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		if _, err := b.tg.Send(tgbotapi.NewMessage(e.TelegramID, formatReminder(e))); err != nil {
			b.logger.Warn().Err(err).Int64("booking_id", e.BookingID).Msg("reminder: send")
			continue
		}
		sent++
	}
	b.logger.Info().Str("date", tomorrow).Int("sent", sent).Msg("reminders sent")
	return sent
}

func formatReminder(e *journal.Entry) string {
	return fmt.Sprintf("⏰ Reminder: you have a booking tomorrow\n%s", formatEntry(e))
}

func timeUntilNextHour(now time.Time, hour int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}
