// Package journal keeps a local ledger of the remote bookings made through this
// process, fed by booking flow events.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"turfbook/internal/events"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// Status of a journaled booking.
const (
	StatusConfirmed   = "confirmed"
	StatusCancelled   = "cancelled"
	StatusCompensated = "compensated"
)

var ErrNotFound = errors.New("journal entry not found")

// Entry is one remote booking as recorded locally.
type Entry struct {
	ID         int64
	BookingID  int64
	Sport      string
	SlotID     int64
	Date       string
	StartTime  string
	EndTime    string
	Price      int
	UserName   string
	UserEmail  string
	UserPhone  string
	TelegramID int64
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Journal is the SQLite-backed ledger.
type Journal struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// Open opens (creating if needed) the ledger at path.
func Open(path string, logger zerolog.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	j := &Journal{
		DB:     db,
		path:   path,
		logger: logger.With().Str("component", "journal").Logger(),
	}
	if err := j.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	j.logger.Info().Str("path", path).Msg("Journal initialized")
	return j, nil
}

// Path returns the database file location.
func (j *Journal) Path() string { return j.path }

func (j *Journal) createTables() error {
	_, err := j.Exec(`
		CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			sport TEXT NOT NULL,
			slot_id INTEGER NOT NULL,
			date TEXT NOT NULL DEFAULT '',
			start_time TEXT NOT NULL DEFAULT '',
			end_time TEXT NOT NULL DEFAULT '',
			price INTEGER NOT NULL DEFAULT 0,
			user_name TEXT NOT NULL DEFAULT '',
			user_email TEXT NOT NULL DEFAULT '',
			user_phone TEXT NOT NULL DEFAULT '',
			telegram_id INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(sport, booking_id)
		);
		CREATE INDEX IF NOT EXISTS idx_bookings_email ON bookings(user_email);
		CREATE INDEX IF NOT EXISTS idx_bookings_telegram ON bookings(telegram_id);
		CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date);
	`)
	return err
}

// Record inserts the booking or, if it is already known, updates its status.
func (j *Journal) Record(ctx context.Context, p events.BookingPayload, status string) error {
	at := p.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.ExecContext(ctx, `
		INSERT INTO bookings (booking_id, sport, slot_id, date, start_time, end_time, price,
			user_name, user_email, user_phone, telegram_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sport, booking_id) DO UPDATE SET
			status = excluded.status,
			updated_at = excluded.updated_at`,
		p.BookingID, p.Sport, p.SlotID, p.Date, p.StartTime, p.EndTime, p.Price,
		p.UserName, p.UserEmail, p.UserPhone, p.TelegramID, status, at, at)
	if err != nil {
		return fmt.Errorf("record booking %d: %w", p.BookingID, err)
	}
	return nil
}

// SetStatus changes the status of a known booking.
func (j *Journal) SetStatus(ctx context.Context, sport string, bookingID int64, status string) error {
	res, err := j.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE sport = ? AND booking_id = ?`,
		status, time.Now(), sport, bookingID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `SELECT id, booking_id, sport, slot_id, date, start_time, end_time, price,
	user_name, user_email, user_phone, telegram_id, status, created_at, updated_at FROM bookings`

// Get returns the entry for a remote booking id.
func (j *Journal) Get(ctx context.Context, sport string, bookingID int64) (*Entry, error) {
	entries, err := j.query(ctx, selectColumns+` WHERE sport = ? AND booking_id = ?`, sport, bookingID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// FindForUser looks a booking up by remote id among the ones a Telegram user made.
func (j *Journal) FindForUser(ctx context.Context, telegramID, bookingID int64) (*Entry, error) {
	entries, err := j.query(ctx, selectColumns+` WHERE telegram_id = ? AND booking_id = ? ORDER BY id DESC LIMIT 1`,
		telegramID, bookingID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNotFound
	}
	return &entries[0], nil
}

// ListByEmail returns the entries booked under an email address, compared
// case-insensitively.
func (j *Journal) ListByEmail(ctx context.Context, email string) ([]Entry, error) {
	return j.query(ctx, selectColumns+` WHERE user_email = ? COLLATE NOCASE ORDER BY date DESC, start_time DESC`, email)
}

// ListByUser returns the latest bookings of a Telegram user, newest slot first.
func (j *Journal) ListByUser(ctx context.Context, telegramID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	return j.query(ctx, selectColumns+` WHERE telegram_id = ? ORDER BY date DESC, start_time DESC LIMIT ?`,
		telegramID, limit)
}

// ListByDate returns the entries with the given status for a slot date.
func (j *Journal) ListByDate(ctx context.Context, date, status string) ([]Entry, error) {
	return j.query(ctx, selectColumns+` WHERE date = ? AND status = ? ORDER BY start_time`, date, status)
}

// Recent returns the most recently recorded entries.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return j.query(ctx, selectColumns+` ORDER BY id DESC LIMIT ?`, limit)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.BookingID, &e.Sport, &e.SlotID, &e.Date, &e.StartTime, &e.EndTime,
			&e.Price, &e.UserName, &e.UserEmail, &e.UserPhone, &e.TelegramID, &e.Status,
			&e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Subscribe feeds the journal from booking flow events.
func (j *Journal) Subscribe(bus *events.EventBus) {
	record := func(status string) events.EventHandler {
		return func(ev events.Event) error {
			var p events.BookingPayload
			if err := ev.Decode(&p); err != nil {
				return fmt.Errorf("decode %s: %w", ev.Type, err)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return j.Record(ctx, p, status)
		}
	}
	bus.Subscribe(events.BookingConfirmed, record(StatusConfirmed))
	bus.Subscribe(events.BookingCompensated, record(StatusCompensated))
	bus.Subscribe(events.BookingCancelled, record(StatusCancelled))
}
