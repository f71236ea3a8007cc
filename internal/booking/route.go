package booking

import (
	"strings"

	"turfbook/internal/models"
)

// Navigation paths of the booking pages. Matching is by substring so localized or
// nested prefixes ("/en/booking/cricket/confirm") still resolve.
const (
	bookingSegment = "/booking/"

	RouteCricket    = "/booking/cricket"
	RoutePickleball = "/booking/pickleball"
	RouteHome       = "/"
)

// IsBookingRoute reports whether path belongs to the booking flow.
func IsBookingRoute(path string) bool {
	return strings.Contains(path, bookingSegment)
}

// SportFromRoute infers the sport from a navigation path.
func SportFromRoute(path string) models.SportType {
	switch {
	case strings.Contains(path, RouteCricket):
		return models.SportCricket
	case strings.Contains(path, RoutePickleball):
		return models.SportPickleball
	default:
		return models.SportUnset
	}
}

// RouteFor returns the booking page path for sport.
func RouteFor(sport models.SportType) string {
	switch sport {
	case models.SportCricket:
		return RouteCricket
	case models.SportPickleball:
		return RoutePickleball
	default:
		return RouteHome
	}
}

// effectiveSport gives the route precedence over stored state, so a sport left over
// from a previous page cannot query the wrong endpoint.
func effectiveSport(path string, stored models.SportType) models.SportType {
	if s := SportFromRoute(path); s != models.SportUnset {
		return s
	}
	return stored
}
