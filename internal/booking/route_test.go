package booking

import (
	"testing"

	"turfbook/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestIsBookingRoute(t *testing.T) {
	assert.True(t, IsBookingRoute("/booking/"))
	assert.True(t, IsBookingRoute("/booking/cricket"))
	assert.True(t, IsBookingRoute("/en/booking/pickleball/confirm"))
	assert.False(t, IsBookingRoute("/"))
	assert.False(t, IsBookingRoute("/booking"))
	assert.False(t, IsBookingRoute("/about"))
}

func TestSportFromRoute(t *testing.T) {
	tests := []struct {
		path string
		want models.SportType
	}{
		{"/booking/cricket", models.SportCricket},
		{"/booking/cricket/summary", models.SportCricket},
		{"/booking/pickleball", models.SportPickleball},
		{"/booking/", models.SportUnset},
		{"/contact", models.SportUnset},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, SportFromRoute(tt.path))
		})
	}
}

func TestRouteFor(t *testing.T) {
	for _, sport := range models.Sports {
		assert.Equal(t, sport, SportFromRoute(RouteFor(sport)))
	}
	assert.Equal(t, RouteHome, RouteFor(models.SportUnset))
}

func TestEffectiveSport(t *testing.T) {
	assert.Equal(t, models.SportCricket, effectiveSport("/booking/cricket", models.SportPickleball))
	assert.Equal(t, models.SportPickleball, effectiveSport("/booking/", models.SportPickleball))
	assert.Equal(t, models.SportUnset, effectiveSport("/booking/", models.SportUnset))
}
