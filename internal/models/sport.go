package models

import (
	"fmt"
	"strings"
)

// SportType identifies which activity (and therefore which remote endpoint family) a
// booking flow targets. The zero value means "unset".
type SportType string

const (
	SportUnset      SportType = ""
	SportCricket    SportType = "cricket"
	SportPickleball SportType = "pickleball"
)

// Sports lists the supported activities in display order.
var Sports = []SportType{SportCricket, SportPickleball}

// IsValid reports whether s is one of the supported activities.
func (s SportType) IsValid() bool {
	return s == SportCricket || s == SportPickleball
}

// Title returns a human readable name.
func (s SportType) Title() string {
	switch s {
	case SportCricket:
		return "Cricket"
	case SportPickleball:
		return "Pickleball"
	default:
		return "-"
	}
}

// ParseSportType accepts the path segment form ("cricket") as well as the activity
// names used by the backend admin ("Cricket", "Pickle Ball").
func ParseSportType(raw string) (SportType, error) {
	v := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	switch v {
	case "cricket":
		return SportCricket, nil
	case "pickleball":
		return SportPickleball, nil
	}
	return SportUnset, fmt.Errorf("unknown sport %q", raw)
}
