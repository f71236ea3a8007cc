// Package turfapi is the HTTP client for the turf slot/booking service.
package turfapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"turfbook/internal/metrics"
	"turfbook/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 10 * time.Second
)

var (
	ErrInvalidSport    = errors.New("invalid sport type")
	ErrNotAuthorized   = errors.New("admin token not configured")
	ErrUnexpectedReply = errors.New("unexpected response body")
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Method, e.Path, e.Status)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond limits outbound calls; zero disables limiting.
	RatePerSecond float64
	Burst         int
}

// Client calls the remote slot/booking API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     zerolog.Logger

	mu    sync.RWMutex
	token string

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client. Requests carry a shared cookie jar so session
// cookies issued by the service are replayed like a browser would.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	jar, _ := cookiejar.New(nil)

	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{Timeout: opts.Timeout, Jar: jar},
		logger:     zerolog.Nop(),
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return c
}

// WithLogger sets the request logger.
func (c *Client) WithLogger(logger zerolog.Logger) *Client {
	c.logger = logger.With().Str("component", "turfapi").Logger()
	return c
}

// UseRedisCache configures optional Redis caching for slot lists.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

// SetToken sets the admin API token used for privileged endpoints.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) adminToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// GetSlots fetches the slot list for sport on date (YYYY-MM-DD). A null or empty
// body yields an empty, non-nil slice.
func (c *Client) GetSlots(ctx context.Context, sport models.SportType, date string) ([]models.Slot, error) {
	if !sport.IsValid() {
		return nil, ErrInvalidSport
	}
	path := fmt.Sprintf("/api/%s/slots/?date=%s", sport, url.QueryEscape(date))
	cacheKey := slotsCacheKey(sport, date)

	var slots []models.Slot
	if c.readCache(ctx, cacheKey, &slots) {
		return nonNil(slots), nil
	}

	if err := c.doJSON(ctx, http.MethodGet, path, "slots", nil, &slots, false); err != nil {
		return nil, err
	}
	slots = nonNil(slots)
	c.writeCache(ctx, cacheKey, slots)
	return slots, nil
}

// CreateBooking books one slot.
func (c *Client) CreateBooking(ctx context.Context, sport models.SportType, req models.BookingRequest) (*models.Booking, error) {
	if !sport.IsValid() {
		return nil, ErrInvalidSport
	}
	path := fmt.Sprintf("/api/%s/bookings/", sport)
	var resp models.Booking
	if err := c.doJSON(ctx, http.MethodPost, path, "bookings", req, &resp, false); err != nil {
		return nil, err
	}
	c.invalidateSlots(ctx, sport)
	return &resp, nil
}

// CancelBooking deletes a booking by id.
func (c *Client) CancelBooking(ctx context.Context, sport models.SportType, bookingID int64) error {
	if !sport.IsValid() {
		return ErrInvalidSport
	}
	path := fmt.Sprintf("/api/%s/bookings/%d/", sport, bookingID)
	if err := c.doJSON(ctx, http.MethodDelete, path, "bookings", nil, nil, false); err != nil {
		return err
	}
	c.invalidateSlots(ctx, sport)
	return nil
}

// Authenticate exchanges staff credentials for an API token and keeps it for admin
// calls.
func (c *Client) Authenticate(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api-token-auth/", "auth", body, &resp, false); err != nil {
		return err
	}
	if resp.Token == "" {
		return ErrUnexpectedReply
	}
	c.SetToken(resp.Token)
	return nil
}

// ListBookings returns bookings for sport, optionally filtered by date. Admin only.
func (c *Client) ListBookings(ctx context.Context, sport models.SportType, date string) ([]models.Booking, error) {
	if !sport.IsValid() {
		return nil, ErrInvalidSport
	}
	path := fmt.Sprintf("/api/%s/bookings/", sport)
	if date != "" {
		path += "?date=" + url.QueryEscape(date)
	}
	var bookings []models.Booking
	if err := c.doJSON(ctx, http.MethodGet, path, "bookings", nil, &bookings, true); err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// BlockSlot marks a time range unavailable. Admin only.
func (c *Client) BlockSlot(ctx context.Context, sport models.SportType, req models.BlockRequest) (*models.Slot, error) {
	if !sport.IsValid() {
		return nil, ErrInvalidSport
	}
	path := fmt.Sprintf("/api/%s/blocks/", sport)
	var slot models.Slot
	if err := c.doJSON(ctx, http.MethodPost, path, "blocks", req, &slot, true); err != nil {
		return nil, err
	}
	c.invalidateSlots(ctx, sport)
	return &slot, nil
}

// UnblockSlot releases a blocked slot. Admin only.
func (c *Client) UnblockSlot(ctx context.Context, sport models.SportType, slotID int64) error {
	if !sport.IsValid() {
		return ErrInvalidSport
	}
	path := fmt.Sprintf("/api/%s/blocks/%d/", sport, slotID)
	if err := c.doJSON(ctx, http.MethodDelete, path, "blocks", nil, nil, true); err != nil {
		return err
	}
	c.invalidateSlots(ctx, sport)
	return nil
}

// Dashboard fetches the admin aggregate. Admin only.
func (c *Client) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	var d models.Dashboard
	if err := c.doJSON(ctx, http.MethodGet, "/api/admin/dashboard/", "dashboard", nil, &d, true); err != nil {
		return nil, err
	}
	return &d, nil
}

// HealthCheck checks if the service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health/", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path, endpoint string, body, out any, admin bool) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())
	if admin {
		token := c.adminToken()
		if token == "" {
			return ErrNotAuthorized
		}
		req.Header.Set("Authorization", "Token "+token)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	start := time.Now()
	err = c.do(req, out)
	metrics.ObserveAPI(method, endpoint, start)

	ev := c.logger.Debug()
	if err != nil {
		ev = c.logger.Warn().Err(err)
	}
	ev.Str("method", method).
		Str("path", path).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Dur("elapsed", time.Since(start)).
		Msg("turf api call")
	return err
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			Method: req.Method,
			Path:   req.URL.Path,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func nonNil(slots []models.Slot) []models.Slot {
	if slots == nil {
		return []models.Slot{}
	}
	return slots
}
