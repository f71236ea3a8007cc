package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"turfbook/internal/booking"
	"turfbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	mu        sync.Mutex
	slots     []models.Slot
	fetchErr  error
	failSlot  int64
	nextID    int64
	cancelled []int64
	queried   []string
}

func (f *fakeService) GetSlots(_ context.Context, sport models.SportType, date string) ([]models.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queried = append(f.queried, string(sport)+"@"+date)
	return f.slots, f.fetchErr
}

func (f *fakeService) CreateBooking(_ context.Context, _ models.SportType, req models.BookingRequest) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Slot == f.failSlot {
		return nil, errors.New("This slot is already booked.")
	}
	f.nextID++
	return &models.Booking{ID: f.nextID, Slot: models.SlotRef{ID: req.Slot}, UserName: req.UserName}, nil
}

func (f *fakeService) CancelBooking(_ context.Context, _ models.SportType, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

type testClient struct {
	*httptest.Server
	client *http.Client
	svc    *fakeService
}

var validContact = models.ContactInfo{Name: "Ravi", Email: "r@example.com", Phone: "+91 98765 43210"}

func setupTestServer(t *testing.T, opts Options) *testClient {
	t.Helper()
	svc := &fakeService{slots: []models.Slot{
		{ID: 1, Date: "2026-01-15", StartTime: "06:00:00", EndTime: "07:00:00"},
		{ID: 2, Date: "2026-01-15", StartTime: "18:00:00", EndTime: "19:00:00"},
	}}
	store := booking.NewSessionStore("web", time.Hour, func(string) *booking.Coordinator {
		return booking.NewCoordinator(svc)
	})
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	srv := httptest.NewServer(NewHTTPServer(store, opts, zerolog.Nop()).Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{Server: srv, client: &http.Client{Jar: jar}, svc: svc}
}

func (c *testClient) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, c.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func (c *testClient) state(t *testing.T, method, path string, body any) StateResponse {
	t.Helper()
	resp, data := c.do(t, method, path, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var st StateResponse
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

func TestHealth(t *testing.T) {
	c := setupTestServer(t, Options{})
	resp, body := c.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
}

func TestReady(t *testing.T) {
	c := setupTestServer(t, Options{Checks: []ReadyCheck{
		{Name: "journal", Check: func(context.Context) error { return nil }},
		{Name: "redis", Check: func(context.Context) error { return errors.New("down") }},
	}})
	resp, body := c.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "redis not ready")
}

func TestSessionCookieIssuedAndReused(t *testing.T) {
	c := setupTestServer(t, Options{})

	first := c.state(t, http.MethodGet, "/flow/state", nil)
	assert.Equal(t, booking.RouteHome, first.Route)
	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})
	c.state(t, http.MethodPost, "/flow/selection/1", nil)

	second := c.state(t, http.MethodGet, "/flow/state", nil)
	assert.Equal(t, []int64{1}, second.SelectedSlots)
	assert.Equal(t, "/booking/cricket", second.Route)

	other := &http.Client{}
	resp, err := other.Get(c.URL + "/flow/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	var st StateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Empty(t, st.SelectedSlots)
}

func TestFetchSlots_UsesPathAndDate(t *testing.T) {
	c := setupTestServer(t, Options{})

	c.state(t, http.MethodPut, "/flow/date", dateRequest{Date: "2026-01-15"})
	st := c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})

	assert.Len(t, st.Slots, 2)
	assert.Equal(t, "/booking/cricket", st.Route)
	assert.False(t, st.Loading)
	assert.Equal(t, []string{"cricket@2026-01-15"}, c.svc.queried)

	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/about"})
	assert.Len(t, c.svc.queried, 1)
}

func TestFetchSlots_FailureReported(t *testing.T) {
	c := setupTestServer(t, Options{})
	c.svc.fetchErr = errors.New("boom")

	st := c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/pickleball"})
	assert.Equal(t, "Failed to load available slots: boom", st.Error)
	assert.Empty(t, st.Slots)
}

func TestSetDate_Invalid(t *testing.T) {
	c := setupTestServer(t, Options{})
	resp, body := c.do(t, http.MethodPut, "/flow/date", dateRequest{Date: "15-01-2026"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "expected YYYY-MM-DD")
}

func TestSetSport(t *testing.T) {
	c := setupTestServer(t, Options{})
	st := c.state(t, http.MethodPut, "/flow/sport", sportRequest{Sport: "Pickle Ball"})
	assert.Equal(t, models.SportPickleball, st.SportType)

	resp, _ := c.do(t, http.MethodPut, "/flow/sport", sportRequest{Sport: "tennis"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToggleAndClearSelection(t *testing.T) {
	c := setupTestServer(t, Options{})
	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})

	c.state(t, http.MethodPost, "/flow/selection/1", nil)
	st := c.state(t, http.MethodPost, "/flow/selection/2", nil)
	assert.Equal(t, 1200+2000, st.TotalPrice)

	st = c.state(t, http.MethodPost, "/flow/selection/1", nil)
	assert.Equal(t, []int64{2}, st.SelectedSlots)

	st = c.state(t, http.MethodDelete, "/flow/selection", nil)
	assert.Empty(t, st.SelectedSlots)

	resp, _ := c.do(t, http.MethodPost, "/flow/selection/abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestToggleSlot_RejectsUnavailable(t *testing.T) {
	c := setupTestServer(t, Options{})
	c.svc.slots = append(c.svc.slots, models.Slot{ID: 3, Date: "2026-01-15", StartTime: "19:00:00", EndTime: "20:00:00", IsBooked: true})
	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})

	resp, body := c.do(t, http.MethodPost, "/flow/selection/3", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "slot is not available")

	resp, _ = c.do(t, http.MethodPost, "/flow/selection/99", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	st := c.state(t, http.MethodGet, "/flow/state", nil)
	assert.Empty(t, st.SelectedSlots)
}

func TestToggleSlot_DeselectsSlotTakenAfterSelection(t *testing.T) {
	c := setupTestServer(t, Options{})
	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})
	c.state(t, http.MethodPost, "/flow/selection/2", nil)

	c.svc.mu.Lock()
	taken := append([]models.Slot(nil), c.svc.slots...)
	taken[1].IsBooked = true
	c.svc.slots = taken
	c.svc.mu.Unlock()
	st := c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{})
	require.True(t, st.Slots[1].IsBooked)
	assert.Equal(t, []int64{2}, st.SelectedSlots)

	st = c.state(t, http.MethodPost, "/flow/selection/2", nil)
	assert.Empty(t, st.SelectedSlots)
}

func TestCreateBooking_Preconditions(t *testing.T) {
	c := setupTestServer(t, Options{})
	resp, body := c.do(t, http.MethodPost, "/flow/bookings", validContact)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), booking.ErrNoSportType.Error())

	c.state(t, http.MethodPut, "/flow/sport", sportRequest{Sport: "cricket"})
	resp, body = c.do(t, http.MethodPost, "/flow/bookings", validContact)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), booking.ErrEmptySelection.Error())
}

func TestCreateBooking_InvalidContact(t *testing.T) {
	c := setupTestServer(t, Options{})
	c.state(t, http.MethodPut, "/flow/sport", sportRequest{Sport: "cricket"})
	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})
	c.state(t, http.MethodPost, "/flow/selection/1", nil)

	bad := validContact
	bad.Email = "not-an-email"
	resp, body := c.do(t, http.MethodPost, "/flow/bookings", bad)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "invalid contact details: user_email")
	assert.Zero(t, c.svc.nextID)

	st := c.state(t, http.MethodGet, "/flow/state", nil)
	assert.Equal(t, []int64{1}, st.SelectedSlots)
}

func TestCreateBooking_Success(t *testing.T) {
	c := setupTestServer(t, Options{})
	c.state(t, http.MethodPut, "/flow/sport", sportRequest{Sport: "cricket"})
	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})
	c.state(t, http.MethodPost, "/flow/selection/1", nil)
	c.state(t, http.MethodPost, "/flow/selection/2", nil)

	resp, body := c.do(t, http.MethodPost, "/flow/bookings", validContact)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var out BookingResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Len(t, out.Result.Confirmed, 2)
	assert.Equal(t, 3200, out.Result.TotalPrice)
	assert.Empty(t, out.Error)

	st := c.state(t, http.MethodGet, "/flow/state", nil)
	assert.Empty(t, st.SelectedSlots)
}

func TestCreateBooking_PartialFailure(t *testing.T) {
	c := setupTestServer(t, Options{})
	c.svc.failSlot = 2
	c.state(t, http.MethodPut, "/flow/sport", sportRequest{Sport: "cricket"})
	c.state(t, http.MethodPost, "/flow/slots/fetch", fetchRequest{Path: "/booking/cricket"})
	c.state(t, http.MethodPost, "/flow/selection/1", nil)
	c.state(t, http.MethodPost, "/flow/selection/2", nil)

	resp, body := c.do(t, http.MethodPost, "/flow/bookings", validContact)
	require.Equal(t, http.StatusConflict, resp.StatusCode, string(body))

	var out BookingResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "Failed to create booking. Please try again.", out.Error)
	assert.Equal(t, []int64{2}, out.Result.Failed)
	assert.Equal(t, []int64{1}, out.Result.RolledBack)
	assert.Equal(t, []int64{1}, c.svc.cancelled)

	st := c.state(t, http.MethodGet, "/flow/state", nil)
	assert.Equal(t, []int64{1, 2}, st.SelectedSlots)
}

func TestCORS(t *testing.T) {
	c := setupTestServer(t, Options{AllowedOrigins: []string{"https://turf.example.com"}})
	req, err := http.NewRequest(http.MethodOptions, c.URL+"/flow/state", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://turf.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "https://turf.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestRateLimit(t *testing.T) {
	c := setupTestServer(t, Options{RequestsPerSecond: 1})
	c.do(t, http.MethodGet, "/flow/state", nil)
	resp, _ := c.do(t, http.MethodGet, "/flow/state", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
