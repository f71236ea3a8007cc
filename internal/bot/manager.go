package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"turfbook/internal/journal"
	"turfbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const exportLimit = 5000

// handleManagerCommand runs a manager-only command and reports whether text was one.
func (b *Bot) handleManagerCommand(ctx context.Context, chatID int64, text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "/dashboard":
		b.handleDashboard(ctx, chatID)
	case "/bookings":
		b.handleListBookings(ctx, chatID, fields[1:])
	case "/block":
		b.handleBlock(ctx, chatID, fields[1:])
	case "/unblock":
		b.handleUnblock(ctx, chatID, fields[1:])
	case "/export":
		b.handleExport(ctx, chatID)
	case "/lookup":
		b.handleLookup(ctx, chatID, fields[1:])
	default:
		return false
	}
	return true
}

func (b *Bot) handleDashboard(ctx context.Context, chatID int64) {
	if b.remote == nil {
		b.reply(chatID, "Remote API is not configured")
		return
	}
	d, err := b.remote.Dashboard(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("dashboard request failed")
		b.reply(chatID, "Could not load the dashboard: "+err.Error())
		return
	}
	b.reply(chatID, formatDashboard(d))
}

func formatDashboard(d *models.Dashboard) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Dashboard %s\n\n", d.Date)
	fmt.Fprintf(&sb, "Bookings today: cricket %d, pickleball %d\n", d.TodayBookings.Cricket, d.TodayBookings.Pickleball)
	fmt.Fprintf(&sb, "Bookings this week: cricket %d, pickleball %d\n", d.WeeklyBookings.Cricket, d.WeeklyBookings.Pickleball)
	fmt.Fprintf(&sb, "Available slots: cricket %d/%d, pickleball %d/%d\n",
		d.AvailableSlots.Cricket, d.TotalSlots.Cricket, d.AvailableSlots.Pickleball, d.TotalSlots.Pickleball)
	fmt.Fprintf(&sb, "Blocked slots: cricket %d, pickleball %d\n", d.BlockedSlots.Cricket, d.BlockedSlots.Pickleball)
	fmt.Fprintf(&sb, "Revenue: today %s, week %s\n", formatPrice(d.Revenue.Today), formatPrice(d.Revenue.Week))
	fmt.Fprintf(&sb, "Users: %d\n", d.TotalUsers)
	if len(d.RecentBookings) > 0 {
		sb.WriteString("\nRecent:\n")
		for _, r := range d.RecentBookings {
			fmt.Fprintf(&sb, "#%d %s %s %s %s\n", r.ID, r.Sport, r.Date, r.Time, r.User)
		}
	}
	return sb.String()
}

func (b *Bot) handleListBookings(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		b.reply(chatID, "Usage: /bookings <sport> [YYYY-MM-DD]")
		return
	}
	sport, err := models.ParseSportType(args[0])
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	date := time.Now().In(b.loc).Format(models.DateLayout)
	if len(args) > 1 {
		if _, err := time.Parse(models.DateLayout, args[1]); err != nil {
			b.reply(chatID, "Invalid date, expected YYYY-MM-DD")
			return
		}
		date = args[1]
	}
	if b.remote == nil {
		b.reply(chatID, "Remote API is not configured")
		return
	}

	bookings, err := b.remote.ListBookings(ctx, sport, date)
	if err != nil {
		b.reply(chatID, "Could not load bookings: "+err.Error())
		return
	}
	if len(bookings) == 0 {
		b.reply(chatID, fmt.Sprintf("No %s bookings on %s", sport, date))
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s bookings on %s:\n", sport.Title(), date)
	for _, bk := range bookings {
		label := fmt.Sprintf("slot %d", bk.Slot.ID)
		if bk.Slot.Detail != nil {
			label = bk.Slot.Detail.Label()
		}
		fmt.Fprintf(&sb, "#%d %s %s %s %s\n", bk.ID, label, bk.UserName, bk.UserPhone, bk.UserEmail)
	}
	b.reply(chatID, sb.String())
}

func (b *Bot) handleBlock(ctx context.Context, chatID int64, args []string) {
	req, sport, err := parseBlockArgs(args)
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	if b.remote == nil {
		b.reply(chatID, "Remote API is not configured")
		return
	}
	slot, err := b.remote.BlockSlot(ctx, sport, req)
	if err != nil {
		b.reply(chatID, "Could not block: "+err.Error())
		return
	}
	text := fmt.Sprintf("Blocked %s %s %s-%s", sport.Title(), req.Date, req.StartTime, req.EndTime)
	if slot != nil && slot.ID != 0 {
		text += fmt.Sprintf(" (block #%d)", slot.ID)
	}
	b.reply(chatID, text)
}

func parseBlockArgs(args []string) (models.BlockRequest, models.SportType, error) {
	const usage = "Usage: /block <sport> <YYYY-MM-DD> <HH:MM> <HH:MM> [reason]"
	if len(args) < 4 {
		return models.BlockRequest{}, "", errors.New(usage)
	}
	sport, err := models.ParseSportType(args[0])
	if err != nil {
		return models.BlockRequest{}, "", err
	}
	if _, err := time.Parse(models.DateLayout, args[1]); err != nil {
		return models.BlockRequest{}, "", fmt.Errorf("invalid date %q, expected YYYY-MM-DD", args[1])
	}
	start, err := time.Parse("15:04", args[2])
	if err != nil {
		return models.BlockRequest{}, "", fmt.Errorf("invalid start time %q, expected HH:MM", args[2])
	}
	end, err := time.Parse("15:04", args[3])
	if err != nil {
		return models.BlockRequest{}, "", fmt.Errorf("invalid end time %q, expected HH:MM", args[3])
	}
	if !end.After(start) {
		return models.BlockRequest{}, "", fmt.Errorf("end time must be after start time")
	}
	reason := strings.Join(args[4:], " ")
	if reason == "" {
		reason = "Maintenance"
	}
	return models.BlockRequest{
		Date:      args[1],
		StartTime: args[2],
		EndTime:   args[3],
		Reason:    reason,
	}, sport, nil
}

func (b *Bot) handleUnblock(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		b.reply(chatID, "Usage: /unblock <sport> <slot_id>")
		return
	}
	sport, err := models.ParseSportType(args[0])
	if err != nil {
		b.reply(chatID, err.Error())
		return
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil || id <= 0 {
		b.reply(chatID, "Invalid slot id")
		return
	}
	if b.remote == nil {
		b.reply(chatID, "Remote API is not configured")
		return
	}
	if err := b.remote.UnblockSlot(ctx, sport, id); err != nil {
		b.reply(chatID, "Could not unblock: "+err.Error())
		return
	}
	b.reply(chatID, fmt.Sprintf("Slot %d unblocked", id))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	if b.journal == nil {
		b.reply(chatID, "Journal is not configured")
		return
	}
	var buf bytes.Buffer
	n, err := b.journal.ExportExcel(ctx, &buf, exportLimit)
	if err != nil {
		b.logger.Error().Err(err).Msg("journal export failed")
		b.reply(chatID, "Export failed")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("bookings_%s.xlsx", time.Now().In(b.loc).Format("20060102")),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("%d bookings", n)
	b.send(doc)
}

const lookupUsage = "Usage: /lookup <email> or /lookup <sport> <booking_id>"

// handleLookup finds journaled bookings by customer email or by remote booking id.
func (b *Bot) handleLookup(ctx context.Context, chatID int64, args []string) {
	if b.journal == nil {
		b.reply(chatID, "Booking history is unavailable")
		return
	}

	var entries []journal.Entry
	var err error
	switch len(args) {
	case 1:
		email := args[0]
		if models.ValidateContact(models.ContactInfo{Email: email}, "Email") != nil {
			b.reply(chatID, lookupUsage)
			return
		}
		entries, err = b.journal.ListByEmail(ctx, email)
	case 2:
		sport, perr := models.ParseSportType(args[0])
		id, ierr := strconv.ParseInt(args[1], 10, 64)
		if perr != nil || ierr != nil {
			b.reply(chatID, lookupUsage)
			return
		}
		var e *journal.Entry
		if e, err = b.journal.Get(ctx, string(sport), id); err == nil {
			entries = []journal.Entry{*e}
		}
	default:
		b.reply(chatID, lookupUsage)
		return
	}

	switch {
	case errors.Is(err, journal.ErrNotFound), err == nil && len(entries) == 0:
		b.reply(chatID, "No bookings found")
		return
	case err != nil:
		zerolog.Ctx(ctx).Error().Err(err).Msg("journal lookup failed")
		b.reply(chatID, "Could not load bookings")
		return
	}

	var sb strings.Builder
	for i := range entries {
		e := &entries[i]
		fmt.Fprintf(&sb, "%s\n   %s, %s, %s\n", formatEntry(e), e.UserName, e.UserPhone, e.UserEmail)
	}
	b.reply(chatID, sb.String())
}
