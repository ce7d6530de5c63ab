package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/mtnptrsn/zon/models"
)

// ErrTransitionNotAllowed is returned when a room cannot move to the
// requested status. It matches models.ErrWrongPhase under errors.Is.
var ErrTransitionNotAllowed = fmt.Errorf("state transition not allowed: %w", models.ErrWrongPhase)

// Guard decides whether a registered transition may fire right now.
type Guard func(room *models.Room, now time.Time) bool

// EnterHook runs after a room has moved into a status.
type EnterHook func(room *models.Room, now time.Time)

// Machine is a transition table shared by all rooms. Rooms carry their own
// status, the machine only validates and applies moves between them.
type Machine struct {
	transitions map[models.Status]map[models.Status]Guard // from -> to -> guard
	onEnter     map[models.Status][]EnterHook
	mutex       sync.RWMutex
}

func NewMachine() *Machine {
	return &Machine{
		transitions: make(map[models.Status]map[models.Status]Guard),
		onEnter:     make(map[models.Status][]EnterHook),
	}
}

// AddTransition registers from -> to. A nil guard always allows it.
func (m *Machine) AddTransition(from, to models.Status, guard Guard) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.transitions[from]; !exists {
		m.transitions[from] = make(map[models.Status]Guard)
	}
	m.transitions[from][to] = guard
}

func (m *Machine) OnEnter(status models.Status, hook EnterHook) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.onEnter[status] = append(m.onEnter[status], hook)
}

// CanTransition reports why room may not move to `to`, or nil.
func (m *Machine) CanTransition(room *models.Room, to models.Status, now time.Time) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	targets, exists := m.transitions[room.Status]
	if !exists {
		return fmt.Errorf("%w: %s is terminal", ErrTransitionNotAllowed, room.Status)
	}
	guard, exists := targets[to]
	if !exists {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, room.Status, to)
	}
	if guard != nil && !guard(room, now) {
		return fmt.Errorf("%w: %s -> %s guard rejected", ErrTransitionNotAllowed, room.Status, to)
	}
	return nil
}

// ChangeState moves room to `to` and runs the enter hooks. The room is left
// untouched when the transition is not allowed.
func (m *Machine) ChangeState(room *models.Room, to models.Status, now time.Time) error {
	if err := m.CanTransition(room, to, now); err != nil {
		return err
	}
	room.Status = to

	m.mutex.RLock()
	hooks := m.onEnter[to]
	m.mutex.RUnlock()
	for _, h := range hooks {
		h(room, now)
	}
	return nil
}
