package bot

import (
	"sync"

	"turfbook/internal/models"
)

type flowStep string

const (
	stepNone    flowStep = "none"
	stepSlots   flowStep = "slots"
	stepName    flowStep = "name"
	stepEmail   flowStep = "email"
	stepPhone   flowStep = "phone"
	stepConfirm flowStep = "confirm"
)

// chatState is the conversational part of a user's flow. Date, sport and
// selection live in the user's booking coordinator.
type chatState struct {
	Step    flowStep
	Contact models.ContactInfo
}

type stateStore struct {
	mu sync.Mutex
	m  map[int64]*chatState
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]*chatState)}
}

func (s *stateStore) get(userID int64) *chatState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &chatState{Step: stepNone}
		s.m[userID] = st
	}
	return st
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
