package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"turfbook/internal/booking"
	"turfbook/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// StateResponse is the booking flow state returned by every /flow endpoint.
type StateResponse struct {
	booking.Snapshot
	Route string `json:"route"`
}

type dateRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

type sportRequest struct {
	Sport string `json:"sport"`
}

type fetchRequest struct {
	Path string `json:"path"`
}

// BookingResponse is returned by POST /flow/bookings.
type BookingResponse struct {
	Result booking.BatchResult `json:"result"`
	Error  string              `json:"error,omitempty"`
}

func decodeBody(r *http.Request, v any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func (s *HTTPServer) writeState(w http.ResponseWriter, status int, sess *booking.Session) {
	writeJSON(w, status, StateResponse{
		Snapshot: sess.Coordinator.Snapshot(),
		Route:    sess.Route(),
	})
}

// GET /flow/state
func (s *HTTPServer) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeState(w, http.StatusOK, sessionFrom(r))
}

// PUT /flow/date
func (s *HTTPServer) handleSetDate(w http.ResponseWriter, r *http.Request) {
	var req dateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := time.ParseInLocation(models.DateLayout, req.Date, s.opts.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	sess := sessionFrom(r)
	sess.Coordinator.SetSelectedDate(date)
	s.writeState(w, http.StatusOK, sess)
}

// PUT /flow/sport
func (s *HTTPServer) handleSetSport(w http.ResponseWriter, r *http.Request) {
	var req sportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sport, err := models.ParseSportType(req.Sport)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess := sessionFrom(r)
	sess.Coordinator.SetSportType(sport)
	s.writeState(w, http.StatusOK, sess)
}

// POST /flow/slots/fetch
func (s *HTTPServer) handleFetchSlots(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	sess := sessionFrom(r)
	if req.Path != "" {
		sess.Navigate(req.Path)
	}
	sess.Coordinator.FetchSlots(r.Context(), sess.Route())
	s.writeState(w, http.StatusOK, sess)
}

// POST /flow/selection/{id}
func (s *HTTPServer) handleToggleSlot(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid slot id")
		return
	}

	sess := sessionFrom(r)
	coord := sess.Coordinator
	if !coord.IsSelected(id) {
		slot := models.FindSlot(coord.Slots(), id)
		if slot == nil || !slot.Selectable() {
			writeError(w, http.StatusConflict, "slot is not available")
			return
		}
	}
	coord.ToggleSlotSelection(id)
	s.writeState(w, http.StatusOK, sess)
}

// DELETE /flow/selection
func (s *HTTPServer) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Coordinator.ClearSelectedSlots()
	s.writeState(w, http.StatusOK, sess)
}

// POST /flow/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var contact models.ContactInfo
	if err := decodeBody(r, &contact); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := models.ValidateContact(contact); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	contact.Phone, _ = models.NormalizePhone(contact.Phone)

	sess := sessionFrom(r)
	result, err := sess.Coordinator.Submit(r.Context(), contact)
	switch {
	case errors.Is(err, booking.ErrNoSportType), errors.Is(err, booking.ErrEmptySelection):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("booking batch failed")
		writeJSON(w, http.StatusConflict, BookingResponse{Result: result, Error: sess.Coordinator.Error()})
		return
	}

	sess.Coordinator.ClearSelectedSlots()
	writeJSON(w, http.StatusCreated, BookingResponse{Result: result})
}
