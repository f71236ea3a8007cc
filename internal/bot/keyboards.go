package bot

import (
	"fmt"
	"time"

	"turfbook/internal/booking"
	"turfbook/internal/models"
	"turfbook/internal/pricing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func sportKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🏏 Cricket", "sport:"+string(models.SportCricket)),
			tgbotapi.NewInlineKeyboardButtonData("🏓 Pickleball", "sport:"+string(models.SportPickleball)),
		),
	)
}

// dateKeyboard offers days consecutive dates starting at from, three per row.
func dateKeyboard(from time.Time, days int) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, days/3+2)
	var row []tgbotapi.InlineKeyboardButton
	for i := 0; i < days; i++ {
		d := from.AddDate(0, 0, i)
		label := d.Format("Mon 02 Jan")
		if i == 0 {
			label = "Today"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "date:"+d.Format(models.DateLayout)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("✖ Cancel", "cancel"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// slotKeyboard renders the slot grid. Unavailable slots are shown but inert unless
// they are still selected.
func slotKeyboard(snap booking.Snapshot) tgbotapi.InlineKeyboardMarkup {
	selected := make(map[int64]bool, len(snap.SelectedSlots))
	for _, id := range snap.SelectedSlots {
		selected[id] = true
	}

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(snap.Slots)/2+3)
	var row []tgbotapi.InlineKeyboardButton
	for i := range snap.Slots {
		s := &snap.Slots[i]
		row = append(row, slotButton(s, selected[s.ID]))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑 Clear", "clear"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Refresh", "refresh"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Dates", "back:date"),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("📝 Book (%s)", formatPrice(snap.TotalPrice)), "book"),
		),
	)
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func slotButton(s *models.Slot, selected bool) tgbotapi.InlineKeyboardButton {
	data := fmt.Sprintf("slot:%d", s.ID)
	var mark string
	switch {
	case s.IsBlocked:
		mark = "⛔ "
	case s.IsBooked:
		mark = "🔒 "
	}
	if mark != "" {
		if !selected {
			return tgbotapi.NewInlineKeyboardButtonData(mark+s.Label(), "noop")
		}
		// Taken after it was selected; tapping it only deselects.
		return tgbotapi.NewInlineKeyboardButtonData("✅ "+mark+s.Label(), data)
	}

	text := fmt.Sprintf("%s %s", s.Label(), formatPrice(pricing.SlotPrice(s)))
	if selected {
		text = "✅ " + text
	}
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func confirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm"),
			tgbotapi.NewInlineKeyboardButtonData("✖ Cancel", "cancel"),
		),
	)
}

func formatPrice(v int) string {
	return fmt.Sprintf("₹%d", v)
}
