package turfapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"turfbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL + "/", Timeout: 2 * time.Second})
}

func TestGetSlots(t *testing.T) {
	var gotPath, gotDate string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotDate = r.URL.Query().Get("date")
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		_, _ = w.Write([]byte(`[{"id":1,"date":"2026-01-15","start_time":"06:00:00","end_time":"07:00:00","is_blocked":false,"price":1200}]`))
	}))

	slots, err := c.GetSlots(context.Background(), models.SportCricket, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, "/api/cricket/slots/", gotPath)
	assert.Equal(t, "2026-01-15", gotDate)
	require.Len(t, slots, 1)
	assert.Equal(t, int64(1), slots[0].ID)
}

func TestGetSlots_EmptyBody(t *testing.T) {
	for _, body := range []string{"", "null", "[]"} {
		c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		slots, err := c.GetSlots(context.Background(), models.SportPickleball, "2026-01-15")
		require.NoError(t, err, "body: %q", body)
		assert.NotNil(t, slots, "body: %q", body)
		assert.Empty(t, slots, "body: %q", body)
	}
}

func TestGetSlots_InvalidSport(t *testing.T) {
	c := NewClient(Options{})
	_, err := c.GetSlots(context.Background(), models.SportUnset, "2026-01-15")
	assert.ErrorIs(t, err, ErrInvalidSport)
}

func TestGetSlots_ServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"Date parameter is required"}`, http.StatusBadRequest)
	}))

	_, err := c.GetSlots(context.Background(), models.SportCricket, "")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Contains(t, err.Error(), "Date parameter is required")
}

func TestCreateBooking(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/pickleball/bookings/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req models.BookingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(7), req.Slot)
		assert.Equal(t, "Asha", req.UserName)
		assert.Equal(t, "asha@example.com", req.UserEmail)
		assert.Equal(t, "+91 90000 00000", req.UserPhone)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":55,"slot":7,"user_name":"Asha","user_email":"asha@example.com","user_phone":"+91 90000 00000","created_at":"2026-01-15T10:00:00Z"}`))
	}))

	contact := models.ContactInfo{Name: "Asha", Email: "asha@example.com", Phone: "+91 90000 00000"}
	b, err := c.CreateBooking(context.Background(), models.SportPickleball, models.NewBookingRequest(7, contact))
	require.NoError(t, err)
	assert.Equal(t, int64(55), b.ID)
	assert.Equal(t, int64(7), b.Slot.ID)
}

func TestCancelBooking(t *testing.T) {
	var method, path string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, c.CancelBooking(context.Background(), models.SportCricket, 55))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/api/cricket/bookings/55/", path)
}

func TestCookiesAreReplayed(t *testing.T) {
	var sawCookie atomic.Bool
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("sessionid"); err == nil && ck.Value == "abc" {
			sawCookie.Store(true)
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "abc", Path: "/"})
		_, _ = w.Write([]byte(`[]`))
	}))

	ctx := context.Background()
	_, err := c.GetSlots(ctx, models.SportCricket, "2026-01-15")
	require.NoError(t, err)
	_, err = c.GetSlots(ctx, models.SportCricket, "2026-01-16")
	require.NoError(t, err)
	assert.True(t, sawCookie.Load())
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	c := NewClient(Options{BaseURL: "http://127.0.0.1:1"})
	_, err := c.Dashboard(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestAuthenticateAndDashboard(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api-token-auth/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["username"] != "staff" || body["password"] != "secret" {
			http.Error(w, `{"non_field_errors":["Unable to log in"]}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"token":"tkn"}`))
	})
	mux.HandleFunc("/api/admin/dashboard/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token tkn" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(`{"todayBookings":{"cricket":3,"pickleball":1},"revenue":{"today":5000,"week":20000},"totalUsers":4,"date":"2026-01-15"}`))
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	err := c.Authenticate(ctx, "staff", "wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))

	require.NoError(t, c.Authenticate(ctx, "staff", "secret"))
	d, err := c.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, d.TodayBookings.Cricket)
	assert.Equal(t, 5000, d.Revenue.Today)
}

func TestBlockAndUnblock(t *testing.T) {
	var unblockPath string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cricket/blocks/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			unblockPath = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var req models.BlockRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "maintenance", req.Reason)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"date":"2026-01-15","start_time":"10:00:00","end_time":"11:00:00","is_blocked":true,"block_reason":"maintenance"}`))
	})
	c := newTestClient(t, mux)
	c.SetToken("tkn")
	ctx := context.Background()

	slot, err := c.BlockSlot(ctx, models.SportCricket, models.BlockRequest{Date: "2026-01-15", StartTime: "10:00", EndTime: "11:00", Reason: "maintenance"})
	require.NoError(t, err)
	assert.True(t, slot.IsBlocked)

	require.NoError(t, c.UnblockSlot(ctx, models.SportCricket, 9))
	assert.Equal(t, "/api/cricket/blocks/9/", unblockPath)
}

func TestSlotCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	var calls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/cricket/slots/", func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`[{"id":1,"start_time":"06:00:00"}]`))
	})
	mux.HandleFunc("/api/cricket/bookings/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":2,"slot":1}`))
	})
	c := newTestClient(t, mux)
	c.UseRedisCache(rdb, time.Minute)
	ctx := context.Background()

	_, err := c.GetSlots(ctx, models.SportCricket, "2026-01-15")
	require.NoError(t, err)
	slots, err := c.GetSlots(ctx, models.SportCricket, "2026-01-15")
	require.NoError(t, err)
	assert.Len(t, slots, 1)
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, mr.Exists(slotsCacheKey(models.SportCricket, "2026-01-15")))

	_, err = c.CreateBooking(ctx, models.SportCricket, models.BookingRequest{Slot: 1})
	require.NoError(t, err)
	assert.False(t, mr.Exists(slotsCacheKey(models.SportCricket, "2026-01-15")))

	_, err = c.GetSlots(ctx, models.SportCricket, "2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	limited := NewClient(Options{BaseURL: srv.URL, RatePerSecond: 0.001, Burst: 1})

	_, err := limited.GetSlots(context.Background(), models.SportCricket, "2026-01-15")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = limited.GetSlots(ctx, models.SportCricket, "2026-01-15")
	assert.Error(t, err)
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	assert.NoError(t, c.HealthCheck(context.Background()))
}
