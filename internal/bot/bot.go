// Package bot is the Telegram front-end of the booking flow.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"turfbook/internal/booking"
	"turfbook/internal/journal"
	"turfbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// RemoteService is the part of the remote booking API the bot uses directly,
// outside of the booking coordinator.
type RemoteService interface {
	CancelBooking(ctx context.Context, sport models.SportType, bookingID int64) error
	ListBookings(ctx context.Context, sport models.SportType, date string) ([]models.Booking, error)
	BlockSlot(ctx context.Context, sport models.SportType, req models.BlockRequest) (*models.Slot, error)
	UnblockSlot(ctx context.Context, sport models.SportType, slotID int64) error
	Dashboard(ctx context.Context) (*models.Dashboard, error)
}

type Options struct {
	Managers  []int64
	Location  *time.Location
	DaysAhead int
	Debug     bool
}

// Bot drives one booking coordinator per Telegram user.
type Bot struct {
	tg        telegramClient
	sessions  *booking.SessionStore
	remote    RemoteService
	journal   *journal.Journal
	publisher booking.Publisher
	state     *stateStore
	loc       *time.Location
	daysAhead int
	logger    zerolog.Logger

	mu       sync.RWMutex
	managers map[int64]struct{}
}

// SessionKey is the session store key of a Telegram user.
func SessionKey(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

// OwnerFromKey recovers the Telegram user id from a SessionKey, or 0.
func OwnerFromKey(key string) int64 {
	id, err := strconv.ParseInt(strings.TrimPrefix(key, "tg:"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func New(
	token string,
	sessions *booking.SessionStore,
	remote RemoteService,
	j *journal.Journal,
	publisher booking.Publisher,
	opts Options,
	logger zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = opts.Debug
	return newBot(&realTelegramClient{api: api}, sessions, remote, j, publisher, opts, logger)
}

func newBot(
	tg telegramClient,
	sessions *booking.SessionStore,
	remote RemoteService,
	j *journal.Journal,
	publisher booking.Publisher,
	opts Options,
	logger zerolog.Logger,
) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.DaysAhead <= 0 {
		opts.DaysAhead = 14
	}
	b := &Bot{
		tg:        tg,
		sessions:  sessions,
		remote:    remote,
		journal:   j,
		publisher: publisher,
		state:     newStateStore(),
		loc:       opts.Location,
		daysAhead: opts.DaysAhead,
		logger:    logger.With().Str("component", "bot").Logger(),
	}
	b.SetManagers(opts.Managers)
	return b, nil
}

// SetManagers replaces the manager list, e.g. after a config reload.
func (b *Bot) SetManagers(ids []int64) {
	mgrs := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		mgrs[id] = struct{}{}
	}
	b.mu.Lock()
	b.managers = mgrs
	b.mu.Unlock()
}

func (b *Bot) isManager(id int64) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.managers[id]
	return ok
}

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("🏏 Cricket"),
		tgbotapi.NewKeyboardButton("🏓 Pickleball"),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton("📌 My bookings"),
		tgbotapi.NewKeyboardButton("ℹ️ Help"),
	),
)

const helpText = `Book a turf in a few taps:
/cricket or /pickleball to pick a sport, then a date and one or more hourly slots.
/my_bookings lists your bookings, /cancel_booking <id> cancels one.
/cancel aborts the booking in progress.`

const managerHelpText = `Manager commands:
/dashboard - today's numbers
/bookings <sport> [YYYY-MM-DD] - bookings for a day
/block <sport> <YYYY-MM-DD> <HH:MM> <HH:MM> [reason] - block slots
/unblock <sport> <slot_id> - remove a block
/export - journal as XLSX
/lookup <email> | <sport> <booking_id> - find journaled bookings`

// Start polls updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Telegram bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID, userID := msg.Chat.ID, msg.From.ID

	switch {
	case strings.HasPrefix(text, "/start"):
		b.state.reset(userID)
		b.sendWelcome(chatID)
		return
	case strings.HasPrefix(text, "/cricket"), text == "🏏 Cricket":
		b.startBookingFlow(chatID, userID, models.SportCricket)
		return
	case strings.HasPrefix(text, "/pickleball"), text == "🏓 Pickleball":
		b.startBookingFlow(chatID, userID, models.SportPickleball)
		return
	case strings.HasPrefix(text, "/help"), text == "ℹ️ Help":
		help := helpText
		if b.isManager(userID) {
			help += "\n\n" + managerHelpText
		}
		b.reply(chatID, help)
		return
	case strings.HasPrefix(text, "/my_bookings"), text == "📌 My bookings":
		b.handleMyBookings(ctx, chatID, userID)
		return
	case strings.HasPrefix(text, "/cancel_booking"):
		b.handleCancelBooking(ctx, chatID, userID, text)
		return
	case strings.HasPrefix(text, "/cancel"):
		b.abortFlow(chatID, userID)
		return
	}

	if strings.HasPrefix(text, "/") {
		if b.isManager(userID) && b.handleManagerCommand(ctx, chatID, text) {
			return
		}
		b.reply(chatID, "Unknown command. Try /help")
		return
	}

	b.handleContactStep(chatID, userID, text)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	data := cq.Data
	chatID, userID := cq.Message.Chat.ID, cq.From.ID

	switch {
	case data == "noop":
		b.answerCallback(cq.ID, "")
	case strings.HasPrefix(data, "sport:"):
		b.answerCallback(cq.ID, "")
		sport, err := models.ParseSportType(strings.TrimPrefix(data, "sport:"))
		if err != nil {
			return
		}
		b.startBookingFlow(chatID, userID, sport)
	case strings.HasPrefix(data, "date:"):
		b.answerCallback(cq.ID, "")
		b.handleDateCallback(ctx, chatID, userID, strings.TrimPrefix(data, "date:"))
	case strings.HasPrefix(data, "slot:"):
		b.handleSlotCallback(cq, strings.TrimPrefix(data, "slot:"))
	case data == "clear":
		b.answerCallback(cq.ID, "Selection cleared")
		sess := b.sessions.GetOrCreate(SessionKey(userID))
		sess.Coordinator.ClearSelectedSlots()
		b.editSlots(chatID, cq.Message.MessageID, sess)
	case data == "refresh":
		b.answerCallback(cq.ID, "")
		sess := b.sessions.GetOrCreate(SessionKey(userID))
		sess.Coordinator.FetchSlots(ctx, sess.Route())
		b.editSlots(chatID, cq.Message.MessageID, sess)
	case data == "back:date":
		b.answerCallback(cq.ID, "")
		b.sendDatePicker(chatID, userID)
	case data == "book":
		b.handleBookCallback(cq)
	case data == "confirm":
		b.answerCallback(cq.ID, "")
		b.handleConfirm(ctx, chatID, userID)
	case data == "cancel":
		b.answerCallback(cq.ID, "")
		b.abortFlow(chatID, userID)
	default:
		b.answerCallback(cq.ID, "")
	}
}

func (b *Bot) sendWelcome(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Welcome! Which sport would you like to book?")
	msg.ReplyMarkup = mainMenu
	b.send(msg)

	pick := tgbotapi.NewMessage(chatID, "Choose a sport:")
	pick.ReplyMarkup = sportKeyboard()
	b.send(pick)
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.tg.Send(c); err != nil {
		b.logger.Warn().Err(err).Msg("telegram send failed")
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.tg.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Debug().Err(err).Msg("answer callback failed")
	}
}
