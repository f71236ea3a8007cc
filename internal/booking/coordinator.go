// Package booking owns the state of a single user's booking flow: the chosen date and
// sport, the fetched slot list, the slot selection and submission to the remote
// booking service.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"turfbook/internal/metrics"
	"turfbook/internal/models"
	"turfbook/internal/pricing"

	"github.com/rs/zerolog"
)

var (
	ErrNoSportType    = errors.New("sport type is not set")
	ErrEmptySelection = errors.New("no slots selected")
	ErrBookingFailed  = errors.New("booking failed")
)

// User-facing error texts.
const (
	fetchErrorPrefix = "Failed to load available slots: "
	bookingErrorText = "Failed to create booking. Please try again."
)

// SlotService is the remote booking service as seen by the coordinator.
type SlotService interface {
	GetSlots(ctx context.Context, sport models.SportType, date string) ([]models.Slot, error)
	CreateBooking(ctx context.Context, sport models.SportType, req models.BookingRequest) (*models.Booking, error)
	CancelBooking(ctx context.Context, sport models.SportType, bookingID int64) error
}

// Publisher receives booking outcome events.
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Snapshot is a point-in-time copy of the coordinator state.
type Snapshot struct {
	SelectedDate  time.Time        `json:"selected_date"`
	SportType     models.SportType `json:"sport_type"`
	Slots         []models.Slot    `json:"slots"`
	SelectedSlots []int64          `json:"selected_slots"`
	Loading       bool             `json:"loading"`
	Error         string           `json:"error,omitempty"`
	TotalPrice    int              `json:"total_price"`
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger.With().Str("component", "booking").Logger()
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithClock overrides time.Now, used for the default selected date.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithOwner tags emitted events with the Telegram user driving this flow.
func WithOwner(telegramID int64) Option {
	return func(c *Coordinator) { c.owner = telegramID }
}

// WithOnChange registers a callback invoked with a fresh snapshot after every state
// change. It runs outside the coordinator lock.
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Coordinator) { c.onChange = fn }
}

// WithRollbackTimeout bounds the compensation requests issued after a partial
// failure.
func WithRollbackTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.rollbackTimeout = d }
}

// Coordinator is the authoritative owner of one booking flow. All methods are safe
// for concurrent use; the lock is never held across network calls.
type Coordinator struct {
	client          SlotService
	publisher       Publisher
	logger          zerolog.Logger
	now             func() time.Time
	owner           int64
	onChange        func(Snapshot)
	rollbackTimeout time.Duration

	mu           sync.Mutex
	selectedDate time.Time
	sportType    models.SportType
	slots        []models.Slot
	selected     Selection
	loading      bool
	errMsg       string
	fetchSeq     uint64
}

// NewCoordinator creates a coordinator with selectedDate set to today.
func NewCoordinator(client SlotService, opts ...Option) *Coordinator {
	c := &Coordinator{
		client:          client,
		logger:          zerolog.Nop(),
		now:             time.Now,
		rollbackTimeout: 10 * time.Second,
		slots:           []models.Slot{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.selectedDate = dateOnly(c.now())
	return c
}

// SelectedDate returns the active date.
func (c *Coordinator) SelectedDate() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedDate
}

// SportType returns the stored sport.
func (c *Coordinator) SportType() models.SportType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sportType
}

// Slots returns a copy of the last fetched slot list.
func (c *Coordinator) Slots() []models.Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Slot, len(c.slots))
	copy(out, c.slots)
	return out
}

// SelectedSlots returns the selected ids in insertion order.
func (c *Coordinator) SelectedSlots() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected.IDs()
}

// IsSelected reports whether id is in the selection.
func (c *Coordinator) IsSelected(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected.Contains(id)
}

// Loading reports whether a fetch or submission is in flight.
func (c *Coordinator) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Error returns the last user-facing error, or "".
func (c *Coordinator) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// Snapshot returns a consistent copy of the whole state.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Coordinator) snapshotLocked() Snapshot {
	slots := make([]models.Slot, len(c.slots))
	copy(slots, c.slots)
	ids := c.selected.IDs()
	return Snapshot{
		SelectedDate:  c.selectedDate,
		SportType:     c.sportType,
		Slots:         slots,
		SelectedSlots: ids,
		Loading:       c.loading,
		Error:         c.errMsg,
		TotalPrice:    pricing.Total(slots, ids),
	}
}

// update applies fn under the lock and then notifies the change listener.
func (c *Coordinator) update(fn func()) {
	c.mu.Lock()
	fn()
	c.unlockAndNotify()
}

// unlockAndNotify releases c.mu and hands a snapshot taken under the lock to the
// change listener.
func (c *Coordinator) unlockAndNotify() {
	if c.onChange == nil {
		c.mu.Unlock()
		return
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.onChange(snap)
}

// SetSelectedDate replaces the active date. It does not fetch; callers invoke
// FetchSlots explicitly.
func (c *Coordinator) SetSelectedDate(date time.Time) {
	c.update(func() { c.selectedDate = dateOnly(date) })
}

// SetSportType replaces the stored sport.
func (c *Coordinator) SetSportType(sport models.SportType) {
	c.update(func() { c.sportType = sport })
}

// FetchSlots loads the slot list for the selected date. route is the caller's current
// navigation path: it decides whether the fetch runs at all and takes precedence over
// the stored sport. Failures are recorded in Error, never returned.
func (c *Coordinator) FetchSlots(ctx context.Context, route string) {
	c.mu.Lock()
	sport := effectiveSport(route, c.sportType)
	if !IsBookingRoute(route) || !sport.IsValid() {
		c.mu.Unlock()
		c.logger.Debug().Str("route", route).Msg("skipping slot fetch outside booking flow")
		return
	}
	c.fetchSeq++
	token := c.fetchSeq
	date := c.selectedDate.Format(models.DateLayout)
	c.loading = true
	c.errMsg = ""
	c.unlockAndNotify()

	slots, err := c.client.GetSlots(ctx, sport, date)

	c.mu.Lock()
	applied := token == c.fetchSeq
	if !applied {
		c.mu.Unlock()
	} else {
		if err != nil {
			c.errMsg = fetchErrorPrefix + err.Error()
			c.slots = []models.Slot{}
		} else {
			if slots == nil {
				slots = []models.Slot{}
			}
			c.slots = slots
		}
		c.loading = false
		c.unlockAndNotify()
	}

	l := c.logger.With().Str("sport", string(sport)).Str("date", date).Uint64("token", token).Logger()
	switch {
	case !applied:
		l.Debug().Msg("discarding superseded slot fetch")
	case err != nil:
		metrics.IncSlotFetch(string(sport), "error")
		l.Warn().Err(err).Msg("slot fetch failed")
	default:
		metrics.IncSlotFetch(string(sport), "ok")
		l.Debug().Int("count", len(slots)).Msg("slots fetched")
	}
}

// ToggleSlotSelection adds or removes id. It does not check that id refers to a
// fetched, selectable slot.
func (c *Coordinator) ToggleSlotSelection(id int64) {
	c.update(func() { c.selected.Toggle(id) })
}

// ClearSelectedSlots empties the selection.
func (c *Coordinator) ClearSelectedSlots() {
	c.update(func() { c.selected.Clear() })
}

// CalculateTotalPrice sums the price of every selected slot present in the current
// slot list. Selected ids missing from the list contribute 0.
func (c *Coordinator) CalculateTotalPrice() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return pricing.Total(c.slots, c.selected.IDs())
}

// CreateBooking submits the selection and reports overall success.
func (c *Coordinator) CreateBooking(ctx context.Context, contact models.ContactInfo) bool {
	_, err := c.Submit(ctx, contact)
	return err == nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func wrapBatchError(errs []error) error {
	return fmt.Errorf("%w: %w", ErrBookingFailed, errors.Join(errs...))
}
