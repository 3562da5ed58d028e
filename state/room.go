package state

import (
	"fmt"
	"io"
	"sync"
)

// minimum head count for a room to count as occupied
const OccupiedThreshold = 2

type Room struct {
	mu           sync.Mutex
	number       int
	occupied     bool
	max_capacity int
	sensors      []Sensor
	out          io.Writer
}

// NewRoom creates an unoccupied room with no capacity set.  Status messages
// go to out; sensors are notified in the order given.
func NewRoom(number int, out io.Writer, sensors ...Sensor) *Room {
	if out == nil {
		out = io.Discard
	}
	return &Room{
		number:  number,
		sensors: sensors,
		out:     out,
	}
}

func (r *Room) Number() int {
	return r.number
}

func (r *Room) IsOccupied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupied
}

func (r *Room) MaxCapacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.max_capacity
}

func (r *Room) Sensors() []Sensor {
	s := make([]Sensor, len(r.sensors))
	copy(s, r.sensors)
	return s
}

func (r *Room) SetMaxCapacity(capacity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if capacity <= 0 {
		fmt.Fprintln(r.out, "Invalid capacity. Please enter a valid positive number.")
		return fmt.Errorf("room %d capacity %d: %w", r.number, capacity, ErrInvalidCapacity)
	}
	r.max_capacity = capacity
	fmt.Fprintf(r.out, "Room %d maximum capacity set to %d.\n", r.number, capacity)
	return nil
}

// AddOccupants records a head count and reports whether the room is now
// occupied.  Sensors are notified even when the state did not change.
func (r *Room) AddOccupants(count int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addOccupants(count)
}

func (r *Room) ReleaseOccupants() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseOccupants()
}

func (r *Room) NotifyObservers() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notify()
}

// callers of the lowercase variants hold r.mu

func (r *Room) addOccupants(count int) bool {
	if count >= OccupiedThreshold {
		r.occupied = true
		fmt.Fprintf(r.out, "Room %d is now occupied by %d persons.\n", r.number, count)
	} else {
		r.occupied = false
		fmt.Fprintf(r.out, "Room %d occupancy insufficient to mark as occupied.\n", r.number)
	}
	r.notify()
	return r.occupied
}

func (r *Room) releaseOccupants() {
	r.occupied = false
	fmt.Fprintf(r.out, "Room %d is now unoccupied.\n", r.number)
	r.notify()
}

func (r *Room) notify() {
	for _, s := range r.sensors {
		s.Update(r.occupied)
	}
}
