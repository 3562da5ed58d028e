package state

import (
	"fmt"
	"io"
	"sync"
)

// Office owns every Room.  Build one at startup and hand it to whatever
// needs room access.
type Office struct {
	mu       sync.RWMutex
	rooms    []*Room
	out      io.Writer
	actuator Actuator
}

// NewOffice returns an office with no rooms.  actuator may be nil.
func NewOffice(out io.Writer, actuator Actuator) *Office {
	if out == nil {
		out = io.Discard
	}
	return &Office{out: out, actuator: actuator}
}

// ConfigureRooms appends count rooms numbered after the existing ones.
// Calling it again adds more rooms, it never replaces.
func (o *Office) ConfigureRooms(count int) {
	if count < 0 {
		count = 0
	}
	o.mu.Lock()
	next := len(o.rooms) + 1
	for i := next; i < next+count; i++ {
		o.rooms = append(o.rooms, NewRoom(i, o.out, NewSensorSet(i, o.out, o.actuator)...))
	}
	o.mu.Unlock()
	fmt.Fprintf(o.out, "Office configured with %d meeting rooms.\n", count)
}

func (o *Office) GetRoom(number int) (*Room, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if number < 1 || number > len(o.rooms) {
		fmt.Fprintln(o.out, "Invalid room number.")
		return nil, fmt.Errorf("room %d: %w", number, ErrInvalidRoomNumber)
	}
	return o.rooms[number-1], nil
}

func (o *Office) RoomCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.rooms)
}

// Rooms returns the rooms in number order.
func (o *Office) Rooms() []*Room {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rooms := make([]*Room, len(o.rooms))
	copy(rooms, o.rooms)
	return rooms
}

func (o *Office) Execute(number int, cmd Command) error {
	room, err := o.GetRoom(number)
	if err != nil {
		return err
	}
	return cmd.Execute(room)
}
